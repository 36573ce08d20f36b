// Package language defines the fixed set of languages TikTalk can tutor and
// the error returned when a caller asks for anything else.
package language

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned when a language code or name is not part of the
// supported set. Every model-facing component checks languages before issuing
// any upstream call, so this error is always raised before work is done.
var ErrUnsupported = errors.New("language: unsupported language")

// Language is a supported learner language.
type Language struct {
	// Code is the ISO 639-1 code passed to speech and translation models.
	Code string

	// Name is the English display name shown in the UI.
	Name string
}

// English is the pivot language every translation routes through.
var English = Language{Code: "en", Name: "English"}

// all is ordered for display; English first.
var all = []Language{
	English,
	{Code: "gu", Name: "Gujarati"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ta", Name: "Tamil"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "ja", Name: "Japanese"},
}

// All returns the supported languages in display order. The returned slice
// is a copy and may be modified by the caller.
func All() []Language {
	out := make([]Language, len(all))
	copy(out, all)
	return out
}

// Parse resolves s, which may be a code ("fr") or a display name ("French"),
// to a supported [Language]. Matching is case-insensitive and ignores
// surrounding whitespace.
func Parse(s string) (Language, error) {
	key := strings.TrimSpace(s)
	for _, l := range all {
		if strings.EqualFold(key, l.Code) || strings.EqualFold(key, l.Name) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnsupported, s)
}

// MustParse is like [Parse] but panics on error. Intended for tests and
// package-level defaults.
func MustParse(s string) Language {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// IsEnglish reports whether l is the pivot language.
func (l Language) IsEnglish() bool { return l.Code == English.Code }

// IsZero reports whether l is the zero value.
func (l Language) IsZero() bool { return l.Code == "" }

// String returns the display name.
func (l Language) String() string { return l.Name }
