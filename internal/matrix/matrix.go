// Package matrix defines the question-by-respondent grid produced by a
// content analysis run.
package matrix

import (
	"slices"
)

// Cell is one respondent's answer to one question.
// Quote is verbatim transcript text; an empty quote is a quality defect.
type Cell struct {
	Quote      string   `json:"quote"`
	Summary    string   `json:"summary"`
	Theme      string   `json:"theme"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Row is one guide question. A row with no respondents is valid and renders
// as blank cells.
type Row struct {
	QuestionType string          `json:"question_type"`
	Question     string          `json:"question"`
	Section      string          `json:"section,omitempty"`
	Subsection   string          `json:"subsection,omitempty"`
	Respondents  map[string]Cell `json:"respondents"`
}

// ContentAnalysis is the full matrix. Respondent keys are identical across
// rows for the same respondent.
type ContentAnalysis struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Rows        []Row  `json:"questions"`
}

// RespondentIDs returns every respondent key in order of first appearance,
// rows scanned top to bottom and keys sorted within a row.
func (m ContentAnalysis) RespondentIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.Rows {
		for _, id := range r.RespondentIDs() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// CellCount returns the number of filled cells.
func (m ContentAnalysis) CellCount() int {
	n := 0
	for _, r := range m.Rows {
		n += len(r.Respondents)
	}
	return n
}

// RespondentIDs returns the row's respondent keys sorted.
func (r Row) RespondentIDs() []string {
	ids := make([]string, 0, len(r.Respondents))
	for id := range r.Respondents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
