// Package guide derives the hierarchical structure of a discussion guide
// (section, subsection, question) from an explicit guide or, failing that,
// from the transcripts themselves. Extraction is best-effort and never fails:
// the worst case is a canonical default skeleton.
package guide

import (
	"fmt"
	"strings"

	"github.com/alnah/guidematrix/internal/project"
)

// Source records how a Structure was obtained.
type Source string

// Source values.
const (
	// SourceJSON: the configured guide parsed as structured JSON.
	SourceJSON Source = "json"
	// SourceText: the configured guide is free text, passed through unchanged.
	SourceText Source = "text"
	// SourceInferred: structure inferred from transcript text.
	SourceInferred Source = "inferred"
	// SourceDefault: nothing usable; canonical skeleton.
	SourceDefault Source = "default"
)

// Question is one guide question. Text is never empty.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Subsection groups questions within a section.
type Subsection struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions,omitempty"`
}

// Section is a top-level guide section. Questions holds the questions asked
// directly under the section, before any subsection.
type Section struct {
	Title       string       `json:"title"`
	Ordinal     int          `json:"ordinal"`
	Questions   []Question   `json:"questions,omitempty"`
	Subsections []Subsection `json:"subsections,omitempty"`
}

// Structure is an ordered discussion guide. It is created once per run and
// never mutated; re-parsing produces a new Structure.
type Structure struct {
	Sections []Section `json:"sections"`
	Source   Source    `json:"source"`

	// Raw holds the configured guide text when Source is SourceText.
	Raw string `json:"raw,omitempty"`
}

// FlatQuestion is a question with its place in the hierarchy.
type FlatQuestion struct {
	Question
	Section    string
	Subsection string
}

// Questions flattens the structure in guide order.
func (s Structure) Questions() []FlatQuestion {
	var out []FlatQuestion
	for _, sec := range s.Sections {
		for _, q := range sec.Questions {
			out = append(out, FlatQuestion{Question: q, Section: sec.Title})
		}
		for _, sub := range sec.Subsections {
			for _, q := range sub.Questions {
				out = append(out, FlatQuestion{Question: q, Section: sec.Title, Subsection: sub.Title})
			}
		}
	}
	return out
}

// Extract derives the guide structure for one analysis run.
//
// Decision order:
//  1. A configured guide is authoritative: JSON matching the structure shape is
//     used directly, anything else is passed through as free text.
//  2. Otherwise the concatenated documents are scanned for headers and questions.
//  3. Otherwise the canonical default skeleton is returned.
func Extract(cfg project.Config, docs []project.Document) Structure {
	if ctx := strings.TrimSpace(cfg.GuideContext); ctx != "" {
		if s, ok := parseJSON(ctx); ok {
			return s
		}
		return Structure{Source: SourceText, Raw: cfg.GuideContext}
	}

	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Content)
	}
	if s := Infer(strings.Join(texts, "\n")); len(s.Sections) > 0 {
		return s
	}

	return Default()
}

// Summary renders the structure as the guide block of the analysis prompt.
func (s Structure) Summary() string {
	var b strings.Builder

	switch s.Source {
	case SourceText:
		b.WriteString("DISCUSSION GUIDE (provided as free text; infer its sections and questions):\n")
		b.WriteString(strings.TrimSpace(s.Raw))
		b.WriteString("\n")
		return b.String()
	case SourceDefault:
		b.WriteString("DISCUSSION GUIDE (none provided or detected; use this default skeleton " +
			"and place questions in the order they occur in the transcripts):\n")
	case SourceInferred:
		b.WriteString("DISCUSSION GUIDE (inferred from transcript text; reconcile against the actual content):\n")
	default:
		b.WriteString("DISCUSSION GUIDE:\n")
	}

	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "Section %d: %s\n", sec.Ordinal, sec.Title)
		for _, q := range sec.Questions {
			fmt.Fprintf(&b, "  %s: %s\n", q.ID, q.Text)
		}
		for _, sub := range sec.Subsections {
			fmt.Fprintf(&b, "  Subsection: %s\n", sub.Title)
			for _, q := range sub.Questions {
				fmt.Fprintf(&b, "    %s: %s\n", q.ID, q.Text)
			}
		}
	}
	return b.String()
}

// Default returns the canonical skeleton used when no guide is available.
func Default() Structure {
	return Structure{
		Source: SourceDefault,
		Sections: []Section{
			{Title: "Introduction / Background", Ordinal: 1},
			{
				Title:   "Core Topic Exploration",
				Ordinal: 2,
				Subsections: []Subsection{
					{Title: "Current Practice and Treatment Approach"},
					{Title: "Challenges and Unmet Needs"},
					{Title: "Perceptions of Available and Emerging Options"},
				},
			},
			{Title: "Specific Areas of Focus", Ordinal: 3},
			{Title: "Wrap-up", Ordinal: 4},
		},
	}
}
