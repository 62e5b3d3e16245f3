// Package validate turns raw model output into a structurally complete
// analysis document. It never fails: malformed output is repaired when
// possible and replaced by a fallback structure otherwise, so callers
// always receive a renderable result.
//
// The state machine is:
//
//	Strip -> Locate -> Parse -> Reconcile
//	                     \-> Secondary-Extract -> Reconcile
//	Locate or Secondary-Extract failure -> Fallback
package validate

import (
	"encoding/json"
	"strings"

	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/matrix"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/schema"
)

// State names a step of the validation state machine.
type State string

// States in traversal order.
const (
	StateStrip            State = "strip"
	StateLocate           State = "locate"
	StateParse            State = "parse"
	StateSecondaryExtract State = "secondary-extract"
	StateReconcile        State = "reconcile"
	StateFallback         State = "fallback"
)

// Status is the outcome class of a validation.
type Status string

// Status values.
const (
	// StatusValid: parsed and complete without any structural change.
	StatusValid Status = "valid"
	// StatusRepaired: parsed, then changed to become complete.
	StatusRepaired Status = "repaired"
	// StatusFallback: nothing parseable; raw text kept in summary.content.
	StatusFallback Status = "fallback"
)

// Document is the complete top-level JSON object of an analysis.
type Document map[string]any

// Result is the single validated view of one model response.
type Result struct {
	Status Status
	Kind   schema.Kind

	// Document always holds every required key of Kind.
	Document Document

	// Matrix is the typed content for ContentAnalysisKind, nil otherwise.
	// It is the same value stored under Document["content_analysis"].
	Matrix *matrix.ContentAnalysis

	// Repairs describes every structural change applied.
	Repairs []string

	// Defects lists quality problems. They never make validation fail.
	Defects []Defect

	// Path is the sequence of states traversed.
	Path []State
}

// JSON serializes the document.
func (r Result) JSON() ([]byte, error) {
	return json.Marshal(r.Document)
}

// Option configures a validation.
type Option func(*options)

type options struct {
	guide       guide.Structure
	transcripts []string
}

// WithGuide aligns content-analysis rows to the guide: one row per guide
// question, in guide order. Ignored when the guide has no questions.
func WithGuide(s guide.Structure) Option {
	return func(o *options) {
		o.guide = s
	}
}

// WithTranscripts enables the verbatim check of quotes against the
// source documents.
func WithTranscripts(docs []project.Document) Option {
	return func(o *options) {
		for _, d := range docs {
			o.transcripts = append(o.transcripts, d.Content)
		}
	}
}

// Validate runs the state machine on raw model output for the expected kind.
// A zero kind is treated as content analysis.
func Validate(raw string, kind schema.Kind, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kind = kind.OrDefault()
	r := Result{Kind: kind}

	r.Path = append(r.Path, StateStrip)
	cleaned := strip(raw)

	r.Path = append(r.Path, StateLocate)
	candidate, ok := locate(cleaned)
	if !ok {
		return fallback(r, raw)
	}

	r.Path = append(r.Path, StateParse)
	doc, ok := parseObject(candidate)
	if !ok {
		r.Path = append(r.Path, StateSecondaryExtract)
		second, found := secondaryCandidate(raw)
		if found {
			doc, ok = parseObject(second)
		}
		if !ok {
			return fallback(r, raw)
		}
		r.Repairs = append(r.Repairs, "recovered JSON by secondary extraction")
	}

	r.Path = append(r.Path, StateReconcile)
	out, repairs := reconcile(doc, kind.Definition())
	r.Repairs = append(r.Repairs, repairs...)
	r.Document = out

	if kind == schema.ContentAnalysisKind {
		body, _ := out[schema.ContentAnalysis].(map[string]any)
		m, notes, defects := normalize(body)
		r.Repairs = append(r.Repairs, notes...)
		r.Defects = append(r.Defects, defects...)

		if qs := o.guide.Questions(); len(qs) > 0 {
			var aligned []string
			m, aligned, defects = align(m, qs)
			r.Repairs = append(r.Repairs, aligned...)
			r.Defects = append(r.Defects, defects...)
		}

		r.Defects = append(r.Defects, inspect(m, o.transcripts)...)
		r.Matrix = &m
		r.Document[schema.ContentAnalysis] = m
	}

	r.Status = StatusValid
	if len(r.Repairs) > 0 {
		r.Status = StatusRepaired
	}
	return r
}

// fallback builds the minimal complete document for the kind and keeps the
// raw output verbatim in summary.content.
func fallback(r Result, raw string) Result {
	r.Path = append(r.Path, StateFallback)
	r.Status = StatusFallback

	def := r.Kind.Definition()
	summary := schema.SummaryKind.Definition().Defaults()
	if strings.TrimSpace(raw) != "" {
		summary["content"] = raw
	}

	r.Document = Document{}
	if def.Key != schema.Summary {
		r.Document[def.Key] = def.Defaults()
	}
	r.Document[schema.Summary] = summary

	if r.Kind == schema.ContentAnalysisKind {
		m := matrix.ContentAnalysis{Rows: []matrix.Row{}}
		r.Matrix = &m
		r.Document[schema.ContentAnalysis] = m
	}
	r.Repairs = append(r.Repairs, "no parseable JSON; raw output kept in summary.content")
	return r
}
