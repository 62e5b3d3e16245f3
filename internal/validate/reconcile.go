package validate

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alnah/guidematrix/internal/schema"
)

// reconcile shapes a parsed object into a complete document for def.
// Top-level keys other than the kind key and the summary companion are
// removed; kind fields returned without their wrapper are moved under it;
// every required field is present with the right JSON type.
func reconcile(in map[string]any, def schema.Definition) (Document, []string) {
	var notes []string
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	body, present := asBody(in[def.Key], def)
	switch {
	case in[def.Key] == nil:
		note("injected missing %q object", def.Key)
	case !present:
		note("replaced %q of unexpected type", def.Key)
	}

	for _, f := range def.Fields {
		v, ok := in[f.Name]
		if !ok || f.Name == def.Key {
			continue
		}
		if _, has := body[f.Name]; !has {
			body[f.Name] = v
			note("moved top-level %q into %q", f.Name, def.Key)
		}
	}

	keys := sortedKeys(in)
	for _, k := range keys {
		switch {
		case k == def.Key || k == schema.Summary:
		case schema.IsKindKey(k):
			note("removed foreign %q structure", k)
		default:
			if _, isField := def.Field(k); !isField {
				note("removed unexpected top-level %q", k)
			}
		}
	}

	out := Document{def.Key: body}
	notes = append(notes, fillFields(body, def)...)

	if def.Key != schema.Summary {
		if v, ok := in[schema.Summary]; ok {
			sdef := schema.SummaryKind.Definition()
			sum, wasObject := asBody(v, sdef)
			if !wasObject {
				note("converted %q to an object", schema.Summary)
			}
			notes = append(notes, fillFields(sum, sdef)...)
			out[schema.Summary] = sum
		}
	}
	return out, notes
}

// asBody returns v as a kind object. A bare array becomes the kind's first
// array field; a bare string becomes its first string field. The boolean
// reports whether v already was an object.
func asBody(v any, def schema.Definition) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		for _, f := range def.Fields {
			if f.Type == schema.Array {
				return map[string]any{f.Name: t}, false
			}
		}
	case string:
		for _, f := range def.Fields {
			if f.Type == schema.String && f.Default != "" {
				return map[string]any{f.Name: t}, false
			}
		}
	}
	return map[string]any{}, false
}

// fillFields injects defaults and fixes field types in place.
func fillFields(body map[string]any, def schema.Definition) []string {
	var notes []string
	for _, f := range def.Fields {
		v, ok := body[f.Name]
		if !ok || v == nil {
			body[f.Name] = f.Zero()
			notes = append(notes, fmt.Sprintf("injected default %s.%s", def.Key, f.Name))
			continue
		}

		switch f.Type {
		case schema.Array:
			switch t := v.(type) {
			case []any:
			case map[string]any:
				body[f.Name] = objectValues(t)
				notes = append(notes, fmt.Sprintf("converted %s.%s object to array", def.Key, f.Name))
			default:
				body[f.Name] = f.Zero()
				notes = append(notes, fmt.Sprintf("replaced %s.%s of unexpected type", def.Key, f.Name))
			}
		case schema.String:
			switch t := v.(type) {
			case string:
				if strings.TrimSpace(t) == "" && f.Default != "" {
					body[f.Name] = f.Default
					notes = append(notes, fmt.Sprintf("injected default %s.%s", def.Key, f.Name))
				}
			case float64, bool:
				body[f.Name] = fmt.Sprint(t)
				notes = append(notes, fmt.Sprintf("converted %s.%s to string", def.Key, f.Name))
			default:
				body[f.Name] = f.Zero()
				notes = append(notes, fmt.Sprintf("replaced %s.%s of unexpected type", def.Key, f.Name))
			}
		}
	}
	return notes
}

// objectValues turns {"Q1": a, "Q2": b, "Q10": c} into [a, b, c].
// Keys are ordered with embedded numbers compared numerically.
func objectValues(m map[string]any) []any {
	keys := sortedKeys(m)
	slices.SortStableFunc(keys, naturalCompare)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

var trailingNumber = regexp.MustCompile(`^(.*?)(\d+)$`)

func naturalCompare(a, b string) int {
	ma, mb := trailingNumber.FindStringSubmatch(a), trailingNumber.FindStringSubmatch(b)
	if ma != nil && mb != nil && ma[1] == mb[1] {
		na, _ := strconv.Atoi(ma[2])
		nb, _ := strconv.Atoi(mb[2])
		return na - nb
	}
	return strings.Compare(a, b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
