package validate

import (
	"fmt"
	"strings"

	"github.com/alnah/guidematrix/internal/matrix"
)

// DefectCode classifies a quality defect.
type DefectCode string

// Defect codes.
const (
	DefectEmptyQuote          DefectCode = "empty_quote"
	DefectPlaceholderQuote    DefectCode = "placeholder_quote"
	DefectPlaceholderTheme    DefectCode = "placeholder_theme"
	DefectNonVerbatimQuote    DefectCode = "non_verbatim_quote"
	DefectDuplicateRespondent DefectCode = "duplicate_respondent"
	DefectUnmatchedRow        DefectCode = "unmatched_row"
	DefectMalformedRow        DefectCode = "malformed_row"
)

// Defect is one quality problem. Row indexes the matrix row the defect was
// found in; for unmatched and malformed rows it indexes the model's rows.
type Defect struct {
	Code       DefectCode `json:"code"`
	Row        int        `json:"row"`
	Respondent string     `json:"respondent,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

func (d Defect) String() string {
	if d.Respondent != "" {
		return fmt.Sprintf("%s (row %d, %s): %s", d.Code, d.Row, d.Respondent, d.Detail)
	}
	return fmt.Sprintf("%s (row %d): %s", d.Code, d.Row, d.Detail)
}

// placeholderQuotes are phrases models emit instead of real evidence.
var placeholderQuotes = map[string]bool{
	"no specific quote available": true,
	"no quote available":          true,
	"no specific quote":           true,
	"no relevant quote":           true,
	"quote not available":         true,
	"not mentioned":               true,
	"not discussed":               true,
	"not applicable":              true,
	"no response":                 true,
	"n/a":                         true,
	"na":                          true,
	"none":                        true,
	"-":                           true,
}

var placeholderThemes = map[string]bool{
	"general response": true,
	"general":          true,
	"no theme":         true,
	"other":            true,
	"n/a":              true,
	"none":             true,
}

// phraseKey lowercases and strips surrounding quotes and punctuation.
func phraseKey(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ` ."'“”‘’!`)
}

// IsPlaceholderQuote reports whether a quote is a known placeholder phrase.
func IsPlaceholderQuote(q string) bool {
	return placeholderQuotes[phraseKey(q)]
}

// IsPlaceholderTheme reports whether a theme is a known placeholder label.
func IsPlaceholderTheme(t string) bool {
	return placeholderThemes[phraseKey(t)]
}

// inspect reports per-cell quality defects in row order, respondents sorted.
func inspect(m matrix.ContentAnalysis, transcripts []string) []Defect {
	var corpus string
	if len(transcripts) > 0 {
		corpus = foldText(strings.Join(transcripts, "\n"))
	}

	var defects []Defect
	for i, row := range m.Rows {
		for _, id := range row.RespondentIDs() {
			cell := row.Respondents[id]
			add := func(code DefectCode, detail string) {
				defects = append(defects, Defect{Code: code, Row: i, Respondent: id, Detail: detail})
			}

			switch {
			case strings.TrimSpace(cell.Quote) == "":
				add(DefectEmptyQuote, "quote is empty")
			case IsPlaceholderQuote(cell.Quote):
				add(DefectPlaceholderQuote, fmt.Sprintf("placeholder quote %q", cell.Quote))
			case corpus != "" && !isVerbatim(cell.Quote, corpus):
				add(DefectNonVerbatimQuote, "quote not found in transcripts")
			}
			if IsPlaceholderTheme(cell.Theme) {
				add(DefectPlaceholderTheme, fmt.Sprintf("placeholder theme %q", cell.Theme))
			}
		}
	}
	return defects
}

var textFolder = strings.NewReplacer(
	"“", `"`, "”", `"`, "‘", "'", "’", "'",
	"–", "-", "—", "-", "\u00a0", " ",
)

// foldText applies the minor normalization tolerated in verbatim quotes:
// case, typographic quotes and dashes, whitespace runs.
func foldText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(textFolder.Replace(s))), " ")
}

// isVerbatim reports whether every ellipsis-separated fragment of the quote
// appears in the folded corpus.
func isVerbatim(quote, corpus string) bool {
	q := strings.ReplaceAll(foldText(quote), "…", "...")
	found := false
	for _, frag := range strings.Split(q, "...") {
		frag = strings.Trim(frag, ` "'`)
		if frag == "" {
			continue
		}
		if !strings.Contains(corpus, frag) {
			return false
		}
		found = true
	}
	return found
}
