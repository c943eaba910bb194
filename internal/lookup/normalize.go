package lookup

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"
)

// SchemaError reports a response that cannot be read as a JSON object.
type SchemaError struct {
	Got string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: response is not a JSON object (got %s)", e.Got)
}

// Kind tags the error for callers that report failures by category.
func (e *SchemaError) Kind() string { return "schema" }

// Report counts the items Normalize dropped for missing required fields.
type Report struct {
	DroppedParts     int `json:"dropped_parts"`
	DroppedRetailers int `json:"dropped_retailers"`
	DroppedGuides    int `json:"dropped_guides"`
}

// Total is the number of dropped items of any kind.
func (r Report) Total() int {
	return r.DroppedParts + r.DroppedRetailers + r.DroppedGuides
}

// videoDomains are registrable domains whose links are videos.
var videoDomains = map[string]bool{
	"youtube.com": true,
	"youtu.be":    true,
}

// Normalize validates raw generative output and coerces it into a Result.
// Only a payload that is not a top-level JSON object is an error; anything
// else degrades by dropping the offending item.
func Normalize(raw []byte) (Result, error) {
	res, _, err := NormalizeReport(raw)
	return res, err
}

// NormalizeReport is Normalize that also reports what was dropped.
//
// Rules:
//   - unknown top-level keys are ignored
//   - parts/guides default to empty, specifications to an empty map
//   - a part needs a non-empty name, a retailer and a guide a non-empty url
//   - a part that loses all its retailers is kept
//   - invalid UTF-8 in any string becomes U+FFFD and numbers keep their
//     literal text, so a normalized Result survives a JSON round trip
func NormalizeReport(raw []byte) (Result, Report, error) {
	var rep Report

	if !gjson.ValidBytes(raw) {
		return Result{}, rep, &SchemaError{Got: "invalid JSON"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Result{}, rep, &SchemaError{Got: typeName(root)}
	}

	res := Result{
		Parts:          []Part{},
		Specifications: map[string]any{},
		Guides:         []Guide{},
	}

	forEachItem(root.Get("parts"), func(item gjson.Result) {
		p, ok, droppedRetailers := normalizePart(item)
		rep.DroppedRetailers += droppedRetailers
		if !ok {
			rep.DroppedParts++
			return
		}
		res.Parts = append(res.Parts, p)
	})

	if specs := root.Get("specifications"); specs.IsObject() {
		specs.ForEach(func(k, v gjson.Result) bool {
			res.Specifications[validUTF8(k.String())] = specValue(v)
			return true
		})
	}

	forEachItem(root.Get("guides"), func(item gjson.Result) {
		g, ok := normalizeGuide(item)
		if !ok {
			rep.DroppedGuides++
			return
		}
		res.Guides = append(res.Guides, g)
	})

	return res, rep, nil
}

// forEachItem calls fn for every element of an array value. Non-arrays are
// treated as empty.
func forEachItem(v gjson.Result, fn func(gjson.Result)) {
	if !v.IsArray() {
		return
	}
	v.ForEach(func(_, item gjson.Result) bool {
		fn(item)
		return true
	})
}

func normalizePart(item gjson.Result) (Part, bool, int) {
	if !item.IsObject() {
		return Part{}, false, 0
	}

	p := Part{
		Name:        text(item, "name"),
		Description: text(item, "description"),
		Retailers:   []Retailer{},
	}

	dropped := 0
	forEachItem(item.Get("retailers"), func(r gjson.Result) {
		if !r.IsObject() {
			dropped++
			return
		}
		u := text(r, "url")
		if u == "" {
			dropped++
			return
		}
		name := text(r, "name")
		if name == "" {
			name = registrableDomain(u)
		}
		p.Retailers = append(p.Retailers, Retailer{Name: name, URL: u})
	})

	if p.Name == "" {
		return Part{}, false, dropped
	}
	return p, true, dropped
}

func normalizeGuide(item gjson.Result) (Guide, bool) {
	if !item.IsObject() {
		return Guide{}, false
	}
	g := Guide{
		Title:       text(item, "title"),
		Description: text(item, "description"),
		URL:         text(item, "url"),
	}
	if g.URL == "" {
		return Guide{}, false
	}

	switch t := GuideType(strings.ToLower(text(item, "type"))); t {
	case GuideVideo, GuideArticle:
		g.Type = t
	default:
		g.Type = inferGuideType(g.URL)
	}
	return g, true
}

// text returns the trimmed string at key, or "" when absent or not a string.
func text(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return validUTF8(strings.TrimSpace(v.Str))
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// specValue converts a specification value to plain Go values. Numbers are
// kept as json.Number so large integers and exact decimals are not rounded
// through float64.
func specValue(v gjson.Result) any {
	switch {
	case v.IsObject():
		m := map[string]any{}
		v.ForEach(func(k, e gjson.Result) bool {
			m[validUTF8(k.String())] = specValue(e)
			return true
		})
		return m
	case v.IsArray():
		a := []any{}
		v.ForEach(func(_, e gjson.Result) bool {
			a = append(a, specValue(e))
			return true
		})
		return a
	}
	switch v.Type {
	case gjson.String:
		return validUTF8(v.Str)
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return nil
	}
}

func inferGuideType(rawURL string) GuideType {
	if videoDomains[registrableDomain(rawURL)] {
		return GuideVideo
	}
	return GuideArticle
}

// registrableDomain returns the eTLD+1 of rawURL's host ("m.youtube.com" ->
// "youtube.com"), the bare host when that fails, or "" for unparsable input.
func registrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

func typeName(v gjson.Result) string {
	switch {
	case v.IsArray():
		return "array"
	case v.Type == gjson.String:
		return "string"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	case v.Type == gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}
