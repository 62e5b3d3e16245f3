// Package speaker scans raw transcripts for speaker labels and respondent
// profile facts. The result is advisory: it steers the model toward stable
// respondent identifiers but is never authoritative.
package speaker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alnah/guidematrix/internal/project"
)

// Scan limits.
const (
	// maxScanLines bounds the cost of detection on very long transcripts.
	maxScanLines = 300

	minLabelLen = 2
	maxLabelLen = 50

	// maxProfileLineLen rejects prose paragraphs mistaken for profile facts.
	maxProfileLineLen = 200
)

// Display caps for the rendered hint block.
const (
	MaxDisplaySpeakers = 15
	MaxDisplayProfiles = 12
)

// linePrefix tolerates a leading timestamp such as "[00:12:03]".
const linePrefix = `^\s*(?:\[[0-9:.,]+\]\s*)?`

// speakerPatterns is ordered: the first family that matches a line wins.
var speakerPatterns = []*regexp.Regexp{
	// Respondent 1:, R2:, Participant #3:, Patient 4:
	regexp.MustCompile(linePrefix + `((?i:respondent|participant|patient|interviewee|resp|r|p)\s*#?\s*\d+)\s*:`),
	// HCP 1:, Physician:, Oncologist 2:
	regexp.MustCompile(linePrefix + `((?i:hcp|kol|physician|doctor|nurse|pharmacist|oncologist|caregiver|payer)(?:\s*#?\s*\d+)?)\s*:`),
	// Interviewer:, Moderator 2:, MOD:
	regexp.MustCompile(linePrefix + `((?i:interviewer|moderator|facilitator|mod|int)(?:\s*#?\s*\d+)?)\s*:`),
	// Dr. Smith:, Prof Jane Doe:
	regexp.MustCompile(linePrefix + `((?:Dr|Prof|Mr|Mrs|Ms)\.?\s+\p{Lu}[\p{L}\p{M}'-]*(?:\s+\p{Lu}[\p{L}\p{M}'-]*)?)\s*:`),
	// Sarah:, John Smith:, Zoë Ødegård:
	regexp.MustCompile(linePrefix + `(\p{Lu}[\p{L}\p{M}'-]+(?:\s+\p{Lu}[\p{L}\p{M}'-]+){0,2})\s*:`),
}

// profilePatterns match anywhere in a line.
var profilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcountry\s*:`),
	regexp.MustCompile(`(?i)\bsegment\s*:`),
	regexp.MustCompile(`(?i)\bexperience\s*:`),
	regexp.MustCompile(`(?i)\b\d+\+?\s*(?:years?|yrs?)\s+(?:of\s+)?(?:clinical\s+|practice\s+)?experience`),
	regexp.MustCompile(`(?i)\bspeciali[sz](?:es|ed|ing)\s+in\b`),
	regexp.MustCompile(`(?i)\bspeciali?ty\s*:`),
	regexp.MustCompile(`(?i)\b(?:practice|hospital|clinic)\s+(?:setting|type)\s*:`),
	regexp.MustCompile(`(?i)\b(?:treats|sees)\s+(?:about\s+|around\s+|approximately\s+)?\d+\s+patients`),
	regexp.MustCompile(`(?i)\bpatients?\s+per\s+(?:day|week|month|year)`),
	regexp.MustCompile(`(?i)\b(?:age|gender|role)\s*:`),
}

// metadataLabels are "Label:" prefixes that look like names but are not speakers.
var metadataLabels = map[string]bool{
	"country": true, "segment": true, "experience": true, "specialty": true,
	"speciality": true, "role": true, "date": true, "time": true,
	"location": true, "setting": true, "note": true, "notes": true,
	"age": true, "gender": true, "hospital": true, "title": true,
	"section": true, "topic": true, "category": true, "subsection": true,
	"question": true, "answer": true, "summary": true, "transcript": true,
	"duration": true, "project": true, "study": true, "interview": true,
	"source": true, "language": true,
}

// Hints holds de-duplicated speaker labels and profile fragments in order
// of first appearance.
type Hints struct {
	Speakers []string
	Profiles []string
}

// IsEmpty reports whether nothing was detected.
func (h Hints) IsEmpty() bool {
	return len(h.Speakers) == 0 && len(h.Profiles) == 0
}

// Detect scans the first lines of text for speaker labels and profile facts.
func Detect(text string) Hints {
	var c collector
	c.scan(text)
	return c.hints
}

// DetectAll runs Detect over every document and merges the results,
// preserving first-appearance order across documents.
func DetectAll(docs []project.Document) Hints {
	var c collector
	for _, d := range docs {
		c.scan(d.Content)
	}
	return c.hints
}

type collector struct {
	hints        Hints
	seenSpeakers map[string]bool
	seenProfiles map[string]bool
}

func (c *collector) scan(text string) {
	if c.seenSpeakers == nil {
		c.seenSpeakers = make(map[string]bool)
		c.seenProfiles = make(map[string]bool)
	}

	lines := strings.Split(text, "\n")
	if len(lines) > maxScanLines {
		lines = lines[:maxScanLines]
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if label, ok := matchSpeaker(line); ok && !c.seenSpeakers[label] {
			c.seenSpeakers[label] = true
			c.hints.Speakers = append(c.hints.Speakers, label)
		}
		if frag, ok := matchProfile(line); ok && !c.seenProfiles[frag] {
			c.seenProfiles[frag] = true
			c.hints.Profiles = append(c.hints.Profiles, frag)
		}
	}
}

func matchSpeaker(line string) (string, bool) {
	for _, re := range speakerPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.Join(strings.Fields(m[1]), " ")
		if n := utf8.RuneCountInString(label); n < minLabelLen || n > maxLabelLen {
			return "", false
		}
		if metadataLabels[strings.ToLower(label)] {
			return "", false
		}
		return label, true
	}
	return "", false
}

func matchProfile(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) >= maxProfileLineLen {
		return "", false
	}
	for _, re := range profilePatterns {
		if re.MatchString(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

// Render formats the hints as the block embedded in the analysis prompt.
// Absence of matches produces explicit instructions rather than an empty block.
func (h Hints) Render() string {
	var b strings.Builder
	b.WriteString("SPEAKER DETECTION HINTS\n")

	if len(h.Speakers) == 0 {
		b.WriteString("No explicit speaker labels detected. Use generic identifiers " +
			"(Respondent 1, Respondent 2, ...) and keep each identifier identical across every question.\n")
	} else {
		shown, more := capList(h.Speakers, MaxDisplaySpeakers)
		fmt.Fprintf(&b, "Detected speaker labels: %s", strings.Join(shown, ", "))
		if more > 0 {
			fmt.Fprintf(&b, " (+%d more)", more)
		}
		b.WriteString("\nUse these labels as respondent identifiers where they denote interviewees. " +
			"Interviewer or moderator labels are not respondents.\n")
	}

	if len(h.Profiles) == 0 {
		b.WriteString("No profile information detected.\n")
	} else {
		b.WriteString("Detected profile information:\n")
		shown, more := capList(h.Profiles, MaxDisplayProfiles)
		for _, p := range shown {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		if more > 0 {
			fmt.Fprintf(&b, "- (+%d more)\n", more)
		}
	}

	return b.String()
}

func capList(items []string, limit int) ([]string, int) {
	if len(items) <= limit {
		return items, 0
	}
	return items[:limit], len(items) - limit
}
