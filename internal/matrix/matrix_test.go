package matrix_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alnah/guidematrix/internal/matrix"
)

func TestRespondentIDs(t *testing.T) {
	t.Parallel()

	m := matrix.ContentAnalysis{Rows: []matrix.Row{
		{Question: "a", Respondents: map[string]matrix.Cell{"Respondent 2": {}, "Respondent 1": {}}},
		{Question: "b"},
		{Question: "c", Respondents: map[string]matrix.Cell{"Dr. Smith": {}, "Respondent 1": {}}},
	}}

	want := []string{"Respondent 1", "Respondent 2", "Dr. Smith"}
	if diff := cmp.Diff(want, m.RespondentIDs()); diff != "" {
		t.Errorf("RespondentIDs() mismatch (-want +got):\n%s", diff)
	}
	if got := m.CellCount(); got != 4 {
		t.Errorf("CellCount() = %d, want 4", got)
	}
}

func TestJSONShape(t *testing.T) {
	t.Parallel()

	conf := 0.8
	m := matrix.ContentAnalysis{
		Title: "t",
		Rows: []matrix.Row{{
			QuestionType: "open",
			Question:     "Why?",
			Respondents: map[string]matrix.Cell{
				"Respondent 1": {Quote: "because", Summary: "reason", Theme: "Cost", Confidence: &conf},
			},
		}},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`"questions":[`, `"question_type":"open"`, `"confidence":0.8`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
	if strings.Contains(string(data), `"section"`) {
		t.Errorf("JSON %s should omit empty section", data)
	}
}
