package guide

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// jsonQuestion accepts either a bare string or an object with id and
// text (or question) fields.
type jsonQuestion struct {
	ID   string
	Text string
}

func (q *jsonQuestion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		q.Text = s
		return nil
	}
	var obj struct {
		ID       any    `json:"id"`
		Text     string `json:"text"`
		Question string `json:"question"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.ID != nil {
		q.ID = fmt.Sprint(obj.ID)
	}
	q.Text = obj.Text
	if q.Text == "" {
		q.Text = obj.Question
	}
	return nil
}

type jsonSubsection struct {
	Title     string         `json:"title"`
	Questions []jsonQuestion `json:"questions"`
}

type jsonSection struct {
	Title       string           `json:"title"`
	Ordinal     int              `json:"ordinal"`
	Questions   []jsonQuestion   `json:"questions"`
	Subsections []jsonSubsection `json:"subsections"`
}

// parseJSON accepts {"sections":[...]} or a bare array of sections.
// It reports false when the text is not JSON or carries no usable section.
func parseJSON(text string) (Structure, bool) {
	var sections []jsonSection

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var doc struct {
			Sections []jsonSection `json:"sections"`
		}
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return Structure{}, false
		}
		sections = doc.Sections
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &sections); err != nil {
			return Structure{}, false
		}
	default:
		return Structure{}, false
	}

	s := buildFromJSON(sections)
	if len(s.Sections) == 0 {
		return Structure{}, false
	}
	return s, true
}

func buildFromJSON(in []jsonSection) Structure {
	// Explicit ordinals win; missing ones keep document order.
	for i := range in {
		if in[i].Ordinal <= 0 {
			in[i].Ordinal = i + 1
		}
	}
	slices.SortStableFunc(in, func(a, b jsonSection) int { return a.Ordinal - b.Ordinal })

	ids := newIDAllocator()
	out := Structure{Source: SourceJSON}

	for _, js := range in {
		sec := Section{
			Title:     strings.TrimSpace(js.Title),
			Questions: ids.convert(js.Questions),
		}
		for _, jsub := range js.Subsections {
			sec.Subsections = append(sec.Subsections, Subsection{
				Title:     strings.TrimSpace(jsub.Title),
				Questions: ids.convert(jsub.Questions),
			})
		}
		if sec.Title == "" && len(sec.Questions) == 0 && len(sec.Subsections) == 0 {
			continue
		}
		sec.Ordinal = len(out.Sections) + 1
		out.Sections = append(out.Sections, sec)
	}
	return out
}

// idAllocator assigns sequential Q<n> identifiers and keeps explicit ones
// unless they collide.
type idAllocator struct {
	next int
	used map[string]bool
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[string]bool)}
}

func (a *idAllocator) assign(explicit string) string {
	a.next++
	id := strings.TrimSpace(explicit)
	if id == "" || a.used[id] {
		id = fmt.Sprintf("Q%d", a.next)
		for a.used[id] {
			a.next++
			id = fmt.Sprintf("Q%d", a.next)
		}
	}
	a.used[id] = true
	return id
}

// convert drops questions with empty text.
func (a *idAllocator) convert(in []jsonQuestion) []Question {
	var out []Question
	for _, q := range in {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		out = append(out, Question{ID: a.assign(q.ID), Text: text})
	}
	return out
}
