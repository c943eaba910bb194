// Package lookup holds the normalized answer to a vehicle service lookup
// and the tolerant parser that produces it from generative output.
package lookup

// GuideType classifies an installation guide.
type GuideType string

const (
	GuideVideo   GuideType = "video"
	GuideArticle GuideType = "article"
)

type Retailer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Part struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Retailers   []Retailer `json:"retailers"`
}

type Guide struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        GuideType `json:"type"`
	URL         string    `json:"url"`
}

// Result is a normalized lookup answer. After Normalize, Parts, Guides and
// Specifications are never nil.
type Result struct {
	Parts          []Part         `json:"parts"`
	Specifications map[string]any `json:"specifications"`
	Guides         []Guide        `json:"guides"`
}

// Empty reports whether the result carries no parts, specifications or guides.
func (r Result) Empty() bool {
	return len(r.Parts) == 0 && len(r.Specifications) == 0 && len(r.Guides) == 0
}

// Clone returns a deep copy of r sharing no slices or maps with it.
func (r Result) Clone() Result {
	out := Result{
		Parts:          make([]Part, len(r.Parts)),
		Specifications: make(map[string]any, len(r.Specifications)),
		Guides:         make([]Guide, len(r.Guides)),
	}
	for i, p := range r.Parts {
		p.Retailers = append([]Retailer{}, p.Retailers...)
		out.Parts[i] = p
	}
	for k, v := range r.Specifications {
		out.Specifications[k] = cloneValue(v)
	}
	copy(out.Guides, r.Guides)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
