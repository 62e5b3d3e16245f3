// Package prompt composes the instruction document sent to the model for one
// analysis run. Composition is template instantiation: the kind-specific
// parts come from the schema table, everything else is fixed text.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/speaker"
)

// SystemMessage is sent as the system role of every analysis request.
const SystemMessage = "You are a senior healthcare qualitative market research analyst. " +
	"You extract verbatim evidence from interview transcripts and return only valid JSON " +
	"matching the schema you are given, with no commentary before or after it."

// Input gathers everything one composed prompt depends on.
type Input struct {
	Config    project.Config
	Guide     guide.Structure
	Hints     speaker.Hints
	Documents []project.Document

	// Kind selects the output schema. Zero means content analysis.
	Kind schema.Kind

	// Language sets the language of narrative fields. Zero keeps the
	// transcripts' language.
	Language lang.Language
}

// Compose builds the user message. Sections appear in a fixed order:
// role framing, project context, speaker hints, guide with process
// checklist, output schema, rules, transcripts.
func Compose(in Input) string {
	def := in.Kind.OrDefault().Definition()

	var b strings.Builder
	writeRole(&b, def)
	writeContext(&b, in.Config)
	b.WriteString(in.Hints.Render())
	b.WriteString("\n")
	writeGuide(&b, in.Guide)
	writeSchema(&b, def)
	writeRules(&b, in.Language)
	writeDocuments(&b, in.Documents)
	return b.String()
}

func writeRole(b *strings.Builder, def schema.Definition) {
	fmt.Fprintf(b, "TASK: Produce a %s from the interview transcripts below.\n", strings.ToLower(def.Title))
	b.WriteString("Work through every transcript completely. Every respondent answer must be mapped " +
		"to the discussion-guide question it addresses.\n\n")
}

func writeContext(b *strings.Builder, cfg project.Config) {
	b.WriteString("PROJECT CONTEXT\n")
	field := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			fmt.Fprintf(b, "%s: %s\n", label, v)
		}
	}
	field("Stakeholder type", cfg.StakeholderType)
	field("Country", cfg.Country)
	field("Therapy area", cfg.TherapyArea)
	field("Research goal", cfg.ResearchGoal)
	field("Hypothesis", cfg.Hypothesis)

	if len(cfg.GuidedThemes) > 0 {
		fmt.Fprintf(b, "Themes to prioritise: %s\n", strings.Join(cfg.GuidedThemes, "; "))
	}
	if len(cfg.Dictionary) > 0 {
		b.WriteString("Dictionary (use these meanings when interpreting terms):\n")
		terms := make([]string, 0, len(cfg.Dictionary))
		for term := range cfg.Dictionary {
			terms = append(terms, term)
		}
		slices.Sort(terms)
		for _, term := range terms {
			fmt.Fprintf(b, "- %s: %s\n", term, cfg.Dictionary[term])
		}
	}
	b.WriteString("\n")
}

func writeGuide(b *strings.Builder, g guide.Structure) {
	b.WriteString(g.Summary())
	b.WriteString(`
PROCESS
1. Extract the guide: list every section, subsection and question in guide order.
2. Map respondents: identify each interviewee and keep one identifier per respondent for the whole matrix.
3. Extract content: for every question and every respondent, find the passage where they address it.
4. Construct the matrix: one row per guide question, in guide order, even when nobody answered it.

`)
}

func writeSchema(b *strings.Builder, def schema.Definition) {
	b.WriteString("OUTPUT SCHEMA (return exactly this JSON structure, nothing else)\n")
	b.WriteString(def.Sketch())
	b.WriteString("\n\nFields:\n")
	for _, f := range def.Fields {
		fmt.Fprintf(b, "- %s: %s\n", f.Name, f.Description)
	}
	if def.Key == schema.ContentAnalysis {
		b.WriteString("- question_type: the guide section or category the question belongs to\n" +
			"- respondents: keyed by respondent identifier; quote is the exact transcript wording, " +
			"summary a one-sentence paraphrase, theme a specific label, confidence between 0 and 1\n")
	}
	fmt.Fprintf(b, "\n%s\n\n", def.Guidance)
}

func writeRules(b *strings.Builder, language lang.Language) {
	b.WriteString(`RULES
- Quotes must be copied verbatim from the transcripts. Never paraphrase inside a quote.
- Never invent respondents, quotes or answers that are not in the transcripts.
- Never use placeholder text such as "No specific quote available" or "General Response".
- When a respondent did not address a question, leave them out of that row.
- Use the same respondent identifier in every row.
- Return JSON only: no markdown fences, no comments, no trailing commas.
`)
	if !language.IsZero() {
		fmt.Fprintf(b, "- Write title, description, summary and theme values in %s. "+
			"Keep quotes in the original language of the transcript.\n", language.DisplayName())
	}
	b.WriteString("\n")
}

func writeDocuments(b *strings.Builder, docs []project.Document) {
	fmt.Fprintf(b, "TRANSCRIPTS (%d)\n", len(docs))
	for i, d := range docs {
		n := i + 1
		fmt.Fprintf(b, "=== DOCUMENT %d: %s ===\n", n, d.ID)
		b.WriteString(strings.TrimSpace(d.Content))
		fmt.Fprintf(b, "\n=== END DOCUMENT %d ===\n", n)
	}
}
