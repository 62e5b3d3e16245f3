// Package schema is the single table of analysis kinds and their output
// shapes. The prompt composer renders it into the instruction document and
// the validator reconciles model output against it, so both always agree.
package schema

import (
	"fmt"
	"strings"
)

// Analysis kind constants; each is also the top-level JSON key of its output.
const (
	ContentAnalysis = "content_analysis"
	FMRDish         = "fmr_dish"
	ModeAnalysis    = "mode_analysis"
	StrategicThemes = "strategic_themes"
	Summary         = "summary"
)

// DefaultSummaryContent fills summary.content when the model supplied nothing.
const DefaultSummaryContent = "Analysis not available"

// ---------------------------------------------------------------------------
// Kind type - represents a validated analysis kind
// ---------------------------------------------------------------------------

// Kind represents a validated analysis kind.
// Zero value is invalid; use ParseKind or the pre-parsed values.
type Kind struct {
	key string
}

// Pre-parsed kinds.
var (
	ContentAnalysisKind = Kind{key: ContentAnalysis}
	FMRDishKind         = Kind{key: FMRDish}
	ModeAnalysisKind    = Kind{key: ModeAnalysis}
	StrategicThemesKind = Kind{key: StrategicThemes}
	SummaryKind         = Kind{key: Summary}
)

// ParseKind validates an analysis kind string. Empty input is an error.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return Kind{}, fmt.Errorf("analysis kind cannot be empty: %w", ErrUnknown)
	}
	if _, ok := definitions[s]; !ok {
		return Kind{}, fmt.Errorf("unknown analysis kind %q (valid: %s): %w",
			s, strings.Join(Names(), ", "), ErrUnknown)
	}
	return Kind{key: s}, nil
}

// MustParseKind parses a kind, panicking if invalid.
// Use only for constants and tests.
func MustParseKind(s string) Kind {
	k, err := ParseKind(s)
	if err != nil {
		panic(err)
	}
	return k
}

// OrDefault returns ContentAnalysisKind for the zero value.
func (k Kind) OrDefault() Kind {
	if k.IsZero() {
		return ContentAnalysisKind
	}
	return k
}

// String returns the kind key. Empty for the zero value.
func (k Kind) String() string {
	return k.key
}

// IsZero reports whether no kind is set.
func (k Kind) IsZero() bool {
	return k.key == ""
}

// Definition returns the kind's table entry.
// Panics if called on the zero value.
func (k Kind) Definition() Definition {
	if k.key == "" {
		panic("schema.Kind.Definition called on zero value")
	}
	return definitions[k.key]
}

// Names returns the kind keys in canonical order.
func Names() []string {
	result := make([]string, len(kindOrder))
	copy(result, kindOrder)
	return result
}

// IsKindKey reports whether key is the top-level key of any kind.
func IsKindKey(key string) bool {
	_, ok := definitions[key]
	return ok
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

// FieldType is the JSON type a field must carry after reconciliation.
type FieldType int

// Field types.
const (
	String FieldType = iota
	Array
)

// Field describes one required field inside a kind's top-level object.
type Field struct {
	Name        string
	Type        FieldType
	Description string

	// Default is the value injected for a missing string field.
	Default string

	// Item is a JSON sketch of one array element, shown in the prompt.
	Item string
}

// Zero returns a fresh default value for the field.
func (f Field) Zero() any {
	if f.Type == Array {
		return []any{}
	}
	return f.Default
}

// Definition is one row of the kind table.
type Definition struct {
	Key      string
	Title    string
	Fields   []Field
	Guidance string
}

// Defaults returns a fresh object holding every field's default value.
func (d Definition) Defaults() map[string]any {
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = f.Zero()
	}
	return out
}

// Field looks up a field by name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Sketch renders the required output shape as an indented JSON outline.
func (d Definition) Sketch() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{\n  %q: {\n", d.Key)
	for i, f := range d.Fields {
		var value string
		switch {
		case f.Type == Array && f.Item != "":
			value = "[\n      " + strings.ReplaceAll(f.Item, "\n", "\n      ") + "\n    ]"
		case f.Type == Array:
			value = "[]"
		default:
			value = "string"
		}
		fmt.Fprintf(&b, "    %q: %s", f.Name, value)
		if i < len(d.Fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n}")
	return b.String()
}

var kindOrder = []string{ContentAnalysis, FMRDish, ModeAnalysis, StrategicThemes, Summary}

var titleFields = []Field{
	{Name: "title", Type: String, Description: "short title for the analysis"},
	{Name: "description", Type: String, Description: "one or two sentences describing scope and respondents"},
}

const tableRow = `{"theme": string, "respondents": {"<respondent-id>": {"quote": string, "summary": string}}}`

var definitions = map[string]Definition{
	ContentAnalysis: {
		Key:   ContentAnalysis,
		Title: "Discussion-guide content analysis matrix",
		Fields: append(titleFields[:2:2], Field{
			Name:        "questions",
			Type:        Array,
			Description: "one row per discussion-guide question, in guide order; keep rows nobody answered",
			Item: `{
  "question_type": string,
  "question": string,
  "section": string,
  "subsection": string,
  "respondents": {
    "<respondent-id>": {"quote": string, "summary": string, "theme": string, "confidence": number}
  }
}`,
		}),
		Guidance: "Map every respondent answer to the guide question it addresses. " +
			"quote is verbatim transcript text; summary paraphrases it in one sentence; " +
			"theme is a short specific label. Omit a respondent from a row when they did not address it.",
	},
	FMRDish: {
		Key:   FMRDish,
		Title: "FMR DISH table",
		Fields: append(titleFields[:2:2], Field{
			Name:        "table",
			Type:        Array,
			Description: "one row per theme",
			Item:        tableRow,
		}),
		Guidance: "Organise findings by theme with supporting verbatim quotes per respondent.",
	},
	ModeAnalysis: {
		Key:   ModeAnalysis,
		Title: "Mode analysis table",
		Fields: append(titleFields[:2:2], Field{
			Name:        "table",
			Type:        Array,
			Description: "one row per recurring mode of response",
			Item:        tableRow,
		}),
		Guidance: "Group respondents by the dominant mode of their answers.",
	},
	StrategicThemes: {
		Key:   StrategicThemes,
		Title: "Strategic themes",
		Fields: append(titleFields[:2:2],
			Field{
				Name:        "themes",
				Type:        Array,
				Description: "strategic themes with a one-paragraph rationale",
				Item:        `{"name": string, "rationale": string}`,
			},
			Field{
				Name:        "table",
				Type:        Array,
				Description: "evidence per theme",
				Item:        tableRow,
			},
		),
		Guidance: "Derive strategic themes and ground each one in verbatim evidence.",
	},
	Summary: {
		Key:   Summary,
		Title: "Summary",
		Fields: []Field{
			{Name: "content", Type: String, Default: DefaultSummaryContent, Description: "narrative summary"},
			{Name: "key_findings", Type: Array, Description: "short key findings", Item: "string"},
		},
		Guidance: "Summarise the main findings across all respondents.",
	},
}
