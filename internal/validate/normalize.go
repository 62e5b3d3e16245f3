package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alnah/guidematrix/internal/matrix"
)

// Alternative field names seen in model output, in preference order.
var (
	questionKeys   = []string{"question", "question_text", "text", "title"}
	typeKeys       = []string{"question_type", "type", "category"}
	respondentKeys = []string{"respondents", "responses", "answers"}
	idKeys         = []string{"respondent", "respondent_id", "id", "name", "speaker"}
	quoteKeys      = []string{"quote", "verbatim", "quotation"}
)

// normalize converts the reconciled content_analysis object into the typed
// matrix. Respondent arrays become maps, string cells become quotes and
// respondent keys are unified across rows.
func normalize(body map[string]any) (matrix.ContentAnalysis, []string, []Defect) {
	var (
		notes   []string
		defects []Defect
	)
	m := matrix.ContentAnalysis{
		Title:       stringField(body, "title"),
		Description: stringField(body, "description"),
		Rows:        []matrix.Row{},
	}

	rows, _ := body["questions"].([]any)
	for i, raw := range rows {
		row, rowNotes, ok := toRow(raw, i)
		notes = append(notes, rowNotes...)
		if !ok {
			defects = append(defects, Defect{
				Code:   DefectMalformedRow,
				Row:    i,
				Detail: "row dropped: no question text and no respondents",
			})
			notes = append(notes, fmt.Sprintf("dropped malformed row %d", i))
			continue
		}
		m.Rows = append(m.Rows, row)
	}

	unifyNotes, unifyDefects := unifyRespondents(&m)
	notes = append(notes, unifyNotes...)
	defects = append(defects, unifyDefects...)
	return m, notes, defects
}

func toRow(raw any, index int) (matrix.Row, []string, bool) {
	var notes []string
	row := matrix.Row{Respondents: map[string]matrix.Cell{}}

	switch t := raw.(type) {
	case string:
		row.Question = strings.TrimSpace(t)
		notes = append(notes, fmt.Sprintf("row %d: bare question string converted to row", index))
		return row, notes, row.Question != ""
	case map[string]any:
		obj := t
		row.Question = firstString(obj, questionKeys)
		row.QuestionType = firstString(obj, typeKeys)
		row.Section = stringField(obj, "section")
		row.Subsection = stringField(obj, "subsection")

		for _, key := range respondentKeys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			if key != "respondents" {
				notes = append(notes, fmt.Sprintf("row %d: read respondents from %q", index, key))
			}
			switch rs := v.(type) {
			case map[string]any:
				for _, id := range sortedKeys(rs) {
					if cell, ok := toCell(rs[id]); ok {
						setCell(row.Respondents, strings.TrimSpace(id), cell)
					}
				}
			case []any:
				notes = append(notes, fmt.Sprintf("row %d: respondent array converted to map", index))
				for _, item := range rs {
					obj, ok := item.(map[string]any)
					if !ok {
						continue
					}
					id := firstString(obj, idKeys)
					if id == "" {
						continue
					}
					src := obj
					for _, nested := range []string{"cell", "response", "answer"} {
						if inner, ok := obj[nested].(map[string]any); ok {
							src = inner
							break
						}
					}
					if cell, ok := toCell(src); ok {
						setCell(row.Respondents, id, cell)
					}
				}
			}
			break
		}
		if row.Question == "" && len(row.Respondents) == 0 {
			return row, notes, false
		}
		return row, notes, true
	}
	return row, notes, false
}

// setCell keeps the first non-empty quote when the same id appears twice
// in one row.
func setCell(cells map[string]matrix.Cell, id string, cell matrix.Cell) {
	if id == "" {
		return
	}
	if prev, ok := cells[id]; ok && strings.TrimSpace(prev.Quote) != "" {
		return
	}
	cells[id] = cell
}

// toCell reads one respondent entry. A null entry means the respondent did
// not address the question.
func toCell(v any) (matrix.Cell, bool) {
	switch t := v.(type) {
	case nil:
		return matrix.Cell{}, false
	case string:
		return matrix.Cell{Quote: t}, true
	case []any:
		var quotes []string
		for _, q := range t {
			if s, ok := q.(string); ok && strings.TrimSpace(s) != "" {
				quotes = append(quotes, s)
			}
		}
		return matrix.Cell{Quote: strings.Join(quotes, " ... ")}, true
	case map[string]any:
		c := matrix.Cell{
			Quote:   firstString(t, quoteKeys),
			Summary: stringField(t, "summary"),
			Theme:   stringField(t, "theme"),
		}
		if f, ok := number(t["confidence"]); ok {
			c.Confidence = &f
		}
		return c, true
	}
	return matrix.Cell{}, false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func stringField(obj map[string]any, key string) string {
	switch t := obj[key].(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	}
	return ""
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringField(obj, k); s != "" {
			return s
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Respondent key unification
// ---------------------------------------------------------------------------

var (
	nonAlnum       = regexp.MustCompile(`[^\p{L}\p{M}\p{N}]+`)
	numberedPrefix = regexp.MustCompile(`^(?:respondent|resp|r|participant|interviewee)0*(\d+)$`)
)

// canonicalKey folds spelling variants of one respondent label:
// "Respondent 1", "R1", "resp_1" and "respondent1" share a key.
// Letters and digits of any script are kept, so "患者A" and "医生A" stay apart.
func canonicalKey(id string) string {
	k := nonAlnum.ReplaceAllString(strings.ToLower(id), "")
	if m := numberedPrefix.FindStringSubmatch(k); m != nil {
		return "respondent" + m[1]
	}
	return k
}

// unifyRespondents renames every respondent to the first spelling seen for
// its canonical key, scanning rows top to bottom and keys sorted within a
// row. Two spellings of one respondent in the same row are merged and
// reported.
func unifyRespondents(m *matrix.ContentAnalysis) ([]string, []Defect) {
	var (
		notes   []string
		defects []Defect
	)
	display := make(map[string]string)
	renamed := make(map[string]bool)

	for i := range m.Rows {
		row := &m.Rows[i]
		out := make(map[string]matrix.Cell, len(row.Respondents))
		for _, id := range row.RespondentIDs() {
			cell := row.Respondents[id]
			key := canonicalKey(id)
			if key == "" {
				key = id
			}
			name, ok := display[key]
			if !ok {
				name = id
				display[key] = id
			}
			if name != id && !renamed[id] {
				renamed[id] = true
				notes = append(notes, fmt.Sprintf("respondent %q unified with %q", id, name))
			}

			if prev, dup := out[name]; dup {
				defects = append(defects, Defect{
					Code:       DefectDuplicateRespondent,
					Row:        i,
					Respondent: name,
					Detail:     fmt.Sprintf("%q merged into %q", id, name),
				})
				if strings.TrimSpace(prev.Quote) != "" {
					continue
				}
			}
			out[name] = cell
		}
		row.Respondents = out
	}
	return notes, defects
}
