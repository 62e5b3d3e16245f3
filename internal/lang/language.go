package lang

import (
	"fmt"
	"strings"
)

// knownBases lists ISO 639-1 codes accepted as output languages for the
// narrative fields of an analysis (summary, theme, description).
var knownBases = map[string]string{
	"ar": "Arabic",
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"zh": "Chinese",
}

// regional overrides the display name of common locales.
var regional = map[string]string{
	"en-us": "American English",
	"en-gb": "British English",
	"fr-ca": "Canadian French",
	"es-mx": "Mexican Spanish",
	"pt-br": "Brazilian Portuguese",
	"pt-pt": "European Portuguese",
	"zh-cn": "Simplified Chinese",
	"zh-tw": "Traditional Chinese",
}

// Language is a validated output language. The zero value means "same
// language as the transcripts".
type Language struct {
	code string
}

// Parse validates a language code. Accepts ISO 639-1 codes and locales
// ("de", "pt-BR", "pt_BR"). Empty input returns the zero Language.
func Parse(s string) (Language, error) {
	if strings.TrimSpace(s) == "" {
		return Language{}, nil
	}
	code := Normalize(strings.TrimSpace(s))
	if _, ok := knownBases[base(code)]; !ok {
		return Language{}, fmt.Errorf("invalid language code %q (use ISO 639-1 codes like 'en', 'de', 'pt-BR'): %w",
			s, ErrInvalid)
	}
	return Language{code: code}, nil
}

// MustParse parses a code, panicking if invalid. Use only for tests.
func MustParse(s string) Language {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Normalize lowercases a code and uses hyphen separators: "pt_BR" -> "pt-br".
func Normalize(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

func base(code string) string {
	if i := strings.Index(code, "-"); i != -1 {
		return code[:i]
	}
	return code
}

// String returns the normalized code, empty for the zero value.
func (l Language) String() string {
	return l.code
}

// IsZero reports whether no output language was requested.
func (l Language) IsZero() bool {
	return l.code == ""
}

// IsEnglish reports whether the language is English or an English locale.
func (l Language) IsEnglish() bool {
	return base(l.code) == "en"
}

// DisplayName returns a human-readable name for prompts.
func (l Language) DisplayName() string {
	if name, ok := regional[l.code]; ok {
		return name
	}
	if name, ok := knownBases[base(l.code)]; ok {
		return name
	}
	return l.code
}
