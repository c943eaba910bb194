package composer

// Schema is the subset of JSON Schema used to constrain generative output.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

func str() *Schema { return &Schema{Type: "string"} }

func object(props map[string]*Schema) *Schema {
	return &Schema{Type: "object", Properties: props}
}

func array(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// ResponseSchema returns the schema every lookup answer must conform to:
// an object with optional parts, specifications and guides. A fresh value is
// built on every call so callers may not alias each other's copy.
func ResponseSchema() *Schema {
	open := true
	return object(map[string]*Schema{
		"parts": array(object(map[string]*Schema{
			"name":        str(),
			"description": str(),
			"retailers": array(object(map[string]*Schema{
				"name": str(),
				"url":  str(),
			})),
		})),
		"specifications": {
			Type:                 "object",
			AdditionalProperties: &open,
		},
		"guides": array(object(map[string]*Schema{
			"title":       str(),
			"description": str(),
			"type":        str(),
			"url":         str(),
		})),
	})
}
