package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/matrix"
)

// minJaccard is the token overlap above which a model row is accepted as
// the answer to a guide question.
const minJaccard = 0.5

var (
	questionLabel = regexp.MustCompile(`(?i)^\s*(?:q(?:uestion)?\s*\d+(?:\.\d+)*|\d+(?:\.\d+)*)\s*[:.)\-]\s*`)
	wordRe        = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// align rebuilds the rows so there is exactly one row per guide question,
// in guide order. Each guide question takes the best unused model row;
// questions nobody answered get an empty row. Model rows that match no
// guide question are dropped and reported.
func align(m matrix.ContentAnalysis, questions []guide.FlatQuestion) (matrix.ContentAnalysis, []string, []Defect) {
	var (
		notes   []string
		defects []Defect
	)
	used := make([]bool, len(m.Rows))
	rows := make([]matrix.Row, 0, len(questions))
	changed := len(m.Rows) != len(questions)

	for qi, q := range questions {
		best, bestScore := -1, 0.0
		for i, r := range m.Rows {
			if used[i] {
				continue
			}
			if s := similarity(q.Text, r.Question); s > bestScore {
				best, bestScore = i, s
			}
		}

		row := matrix.Row{
			QuestionType: q.Section,
			Question:     q.Text,
			Section:      q.Section,
			Subsection:   q.Subsection,
			Respondents:  map[string]matrix.Cell{},
		}
		if best >= 0 && bestScore >= minJaccard {
			used[best] = true
			src := m.Rows[best]
			if best != qi || src.Question != q.Text || src.Section != q.Section || src.Subsection != q.Subsection {
				changed = true
			}
			if src.QuestionType != "" {
				row.QuestionType = src.QuestionType
			}
			row.Respondents = src.Respondents
		} else {
			changed = true
			notes = append(notes, fmt.Sprintf("added empty row for guide question %q", q.ID))
		}
		rows = append(rows, row)
	}

	for i, r := range m.Rows {
		if used[i] {
			continue
		}
		defects = append(defects, Defect{
			Code:   DefectUnmatchedRow,
			Row:    i,
			Detail: fmt.Sprintf("row %q matches no guide question and was dropped", r.Question),
		})
	}
	if changed {
		notes = append(notes, fmt.Sprintf("aligned %d rows to %d guide questions", len(m.Rows), len(questions)))
	}

	m.Rows = rows
	return m, notes, defects
}

// similarity scores how well a model row's question matches guide text:
// 1 for equal normalized text, 0.9 when one contains the other, else the
// Jaccard index of their word sets.
func similarity(guideText, rowText string) float64 {
	a, b := normalizeQuestion(guideText), normalizeQuestion(rowText)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	wa, wb := wordSet(a), wordSet(b)
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalizeQuestion(s string) string {
	s = questionLabel.ReplaceAllString(s, "")
	return strings.Join(wordRe.FindAllString(strings.ToLower(s), -1), " ")
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
