package language_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/tiktalk/pkg/language"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantCode string
	}{
		{"en", "en"},
		{"English", "en"},
		{"  french ", "fr"},
		{"GU", "gu"},
		{"Japanese", "ja"},
		{"ta", "ta"},
		{"de", "de"},
		{"hindi", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := language.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %v", tt.in, err)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Parse(%q).Code = %q, want %q", tt.in, got.Code, tt.wantCode)
			}
		})
	}
}

func TestParse_Unsupported(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"xx", "", "Klingon", "en-US"} {
		_, err := language.Parse(in)
		if !errors.Is(err, language.ErrUnsupported) {
			t.Errorf("Parse(%q): want ErrUnsupported, got %v", in, err)
		}
	}
}

func TestAll_EnglishFirstAndCopied(t *testing.T) {
	t.Parallel()

	got := language.All()
	if len(got) != 7 {
		t.Fatalf("All() returned %d languages, want 7", len(got))
	}
	if !got[0].IsEnglish() {
		t.Errorf("All()[0] = %v, want English", got[0])
	}
	got[0] = language.Language{}
	if !language.All()[0].IsEnglish() {
		t.Error("mutating the result of All() changed the package state")
	}
}

func TestMustParse_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"xx\") did not panic")
		}
	}()
	language.MustParse("xx")
}
