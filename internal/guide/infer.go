package guide

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Caps applied to each family after de-duplication.
const (
	MaxInferredSections    = 15
	MaxInferredSubsections = 20
	MaxInferredQuestions   = 25
)

// untitledSection holds questions that appear before any section header.
const untitledSection = "General"

// mdDecor strips markdown heading and emphasis markers around a line.
var mdDecor = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*|\s*(?:\*\*|__)?\s*$`)

var sectionPatterns = []*regexp.Regexp{
	// Section A - Background, Part 2: Treatment, Module III. Wrap-up
	regexp.MustCompile(`(?i)^(?:section|part|module)\s+[A-Z0-9IVX]{1,4}\s*[-–—:.)]\s*\S.{0,100}$`),
	// 1. Introduction, 2) Current practice
	regexp.MustCompile(`^\d{1,2}[.)]\s+[A-Z][^?:]{2,80}$`),
}

// atxHeading matches "# Title" and "## Title" before decoration is stripped.
var atxHeading = regexp.MustCompile(`^\s*#{1,2}\s+[^#?].{1,80}$`)

var subsectionPatterns = []*regexp.Regexp{
	// 2.1 Treatment approach
	regexp.MustCompile(`^\d{1,2}\.\d{1,2}[.)]?\s+[^?]{3,80}$`),
	// A. Barriers, b) Emerging options
	regexp.MustCompile(`^[A-Za-z][.)]\s+[A-Z][^?]{2,80}$`),
	// Topic: Access, Category - Safety
	regexp.MustCompile(`(?i)^(?:topic|category|subsection|theme)\s*[:\-–]\s*\S.{2,80}$`),
}

// subHeading matches "### Title" and deeper before decoration is stripped.
var subHeading = regexp.MustCompile(`^\s*#{3,6}\s+[^?].{1,80}$`)

// questionPrefix strips labels that introduce a guide question.
var questionPrefix = regexp.MustCompile(`(?i)^(?:(?:q(?:uestion)?\s*\d*(?:\.\d+)*|moderator|interviewer)\s*[:.)\-]\s*|\d{1,2}(?:\.\d{1,2})*[.)]?\s+|[-*•]\s+)`)

// labelledQuestion marks a line as a question even without a question mark.
var labelledQuestion = regexp.MustCompile(`(?i)^(?:q(?:uestion)?\s*\d*(?:\.\d+)*|moderator|interviewer)\s*[:.)\-]\s*\S`)

type itemKind int

const (
	kindSection itemKind = iota
	kindSubsection
	kindQuestion
)

type item struct {
	kind itemKind
	line int
	text string
}

// Infer scans free text for section headers, subsection lines and
// question-like lines. The three families are collected independently,
// de-duplicated, capped, then merged by line position into a hierarchy.
// Questions seen before any header land in a "General" section.
// An empty Structure is returned when nothing matches.
func Infer(text string) Structure {
	var sections, subsections, questions []item

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if line == "" {
			continue
		}
		switch kind, clean, ok := classify(line); {
		case !ok:
		case kind == kindSection:
			sections = append(sections, item{kind, i, clean})
		case kind == kindSubsection:
			subsections = append(subsections, item{kind, i, clean})
		default:
			questions = append(questions, item{kind, i, clean})
		}
	}

	all := slices.Concat(
		dedupe(sections, MaxInferredSections),
		dedupe(subsections, MaxInferredSubsections),
		dedupe(questions, MaxInferredQuestions),
	)
	slices.SortFunc(all, func(a, b item) int { return a.line - b.line })

	return assemble(all)
}

func classify(line string) (itemKind, string, bool) {
	clean := strings.TrimSpace(mdDecor.ReplaceAllString(line, ""))
	if clean == "" {
		return 0, "", false
	}
	question := strings.HasSuffix(clean, "?") || labelledQuestion.MatchString(clean)

	if subHeading.MatchString(line) && !question {
		return kindSubsection, clean, true
	}
	if atxHeading.MatchString(line) && !question {
		return kindSection, clean, true
	}
	if !question {
		for _, re := range sectionPatterns {
			if re.MatchString(clean) {
				return kindSection, clean, true
			}
		}
		for _, re := range subsectionPatterns {
			if re.MatchString(clean) {
				return kindSubsection, clean, true
			}
		}
		return 0, "", false
	}

	q := strings.TrimSpace(questionPrefix.ReplaceAllString(clean, ""))
	if q == "" {
		return 0, "", false
	}
	return kindQuestion, q, true
}

func dedupe(items []item, limit int) []item {
	seen := make(map[string]bool, len(items))
	out := make([]item, 0, min(len(items), limit))
	for _, it := range items {
		key := strings.ToLower(strings.Join(strings.Fields(it.text), " "))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

func assemble(items []item) Structure {
	out := Structure{Source: SourceInferred}
	if len(items) == 0 {
		return out
	}

	var nextQ int
	current := func() *Section {
		if len(out.Sections) == 0 {
			out.Sections = append(out.Sections, Section{Title: untitledSection, Ordinal: 1})
		}
		return &out.Sections[len(out.Sections)-1]
	}

	for _, it := range items {
		switch it.kind {
		case kindSection:
			out.Sections = append(out.Sections, Section{Title: it.text, Ordinal: len(out.Sections) + 1})
		case kindSubsection:
			sec := current()
			sec.Subsections = append(sec.Subsections, Subsection{Title: it.text})
		case kindQuestion:
			nextQ++
			q := Question{ID: fmt.Sprintf("Q%d", nextQ), Text: it.text}
			sec := current()
			if n := len(sec.Subsections); n > 0 {
				sec.Subsections[n-1].Questions = append(sec.Subsections[n-1].Questions, q)
			} else {
				sec.Questions = append(sec.Questions, q)
			}
		}
	}
	return out
}
