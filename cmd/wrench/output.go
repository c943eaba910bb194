package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/kalambet/wrench/internal/api"
	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/session"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives progress and status lines; results go to the writer the
// command passes in, normally stdout, so they can be piped.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func notice(color, mark, format string, args ...any) {
	fmt.Fprintln(stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notice(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notice(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { notice(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// phaseColor picks the color a session phase is shown in.
func phaseColor(p session.Phase) string {
	switch p {
	case session.Ready, session.Saved:
		return colorGreen
	case session.Failed:
		return colorRed
	case session.Superseded:
		return colorYellow
	default:
		return colorCyan
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderState(w io.Writer, st api.StateView) {
	if st.Result == nil {
		fmt.Fprintf(w, "No result (%s)\n", colorize(phaseColor(st.Phase), string(st.Phase)))
		return
	}
	renderResult(w, st.Result)
	if o := st.Omitted; o != nil {
		fmt.Fprintln(w, colorize(colorYellow, fmt.Sprintf("⚠ Omitted %s, %s and %s missing a name or link",
			plural(o.Parts, "part"), plural(o.Retailers, "retailer link"), plural(o.Guides, "guide"))))
	}
}

func renderResult(w io.Writer, res *lookup.Result) {
	if res.Empty() {
		fmt.Fprintln(w, "No parts, specifications or guides found.")
		return
	}

	if len(res.Parts) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Parts"))
		for _, p := range res.Parts {
			fmt.Fprintf(w, "  • %s\n", p.Name)
			if p.Description != "" {
				fmt.Fprintln(w, indent(4, p.Description))
			}
			for _, r := range p.Retailers {
				fmt.Fprintf(w, "    %s  %s\n", colorize(colorCyan, r.Name), r.URL)
			}
		}
		fmt.Fprintln(w)
	}

	if len(res.Specifications) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Specifications"))
		for _, k := range slices.Sorted(maps.Keys(res.Specifications)) {
			fmt.Fprintf(w, "  %s: %s\n", k, specValue(res.Specifications[k]))
		}
		fmt.Fprintln(w)
	}

	if len(res.Guides) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Guides"))
		for _, g := range res.Guides {
			title := g.Title
			if title == "" {
				title = g.URL
			}
			fmt.Fprintf(w, "  [%s] %s\n", g.Type, title)
			if g.Description != "" {
				fmt.Fprintln(w, indent(6, g.Description))
			}
			fmt.Fprintf(w, "      %s\n", g.URL)
		}
	}
}

// specValue renders a specification value; nested values print as JSON.
func specValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderHistory(w io.Writer, records []api.RecordView) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No saved lookups.")
		return
	}
	for _, rec := range records {
		id := rec.ID
		if rec.Expanded {
			id = "▾ " + id
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  (%d parts, %d guides)\n",
			colorize(colorCyan, id),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Vehicle,
			rec.Query.ServiceType,
			len(rec.Result.Parts),
			len(rec.Result.Guides),
		)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// indent prefixes every line of s with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}
