package translate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/tiktalk/pkg/language"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
	"github.com/MrWong99/tiktalk/pkg/provider/translate/mock"
)

func TestPair(t *testing.T) {
	de := language.MustParse("de")
	fr := language.MustParse("fr")

	p := translate.Pair{From: de, To: language.English}
	if p.String() != "de->en" {
		t.Errorf("String() = %q", p.String())
	}
	if p.NonEnglish() != de {
		t.Errorf("NonEnglish() = %v, want German", p.NonEnglish())
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if err := (translate.Pair{From: de, To: fr}).Validate(); !errors.Is(err, translate.ErrNoEnglish) {
		t.Errorf("Validate(de->fr) = %v, want ErrNoEnglish", err)
	}
}

func TestPivot_EnglishIsIdentity(t *testing.T) {
	m := &mock.Provider{}
	p := translate.NewPivot(m)
	ctx := context.Background()

	if out, _ := p.ToEnglish(ctx, "hello", language.English); out != "hello" {
		t.Errorf("ToEnglish = %q", out)
	}
	if out, _ := p.FromEnglish(ctx, "hello", language.English); out != "hello" {
		t.Errorf("FromEnglish = %q", out)
	}
	if out, _ := p.Translate(ctx, "hallo", language.MustParse("de"), language.MustParse("de")); out != "hallo" {
		t.Errorf("Translate same language = %q", out)
	}
	if n := m.CallCount(); n != 0 {
		t.Errorf("backend called %d times, want 0", n)
	}
}

func TestPivot_Directions(t *testing.T) {
	m := &mock.Provider{}
	p := translate.NewPivot(m)
	ctx := context.Background()
	hi := language.MustParse("hi")

	out, err := p.FromEnglish(ctx, "hello", hi)
	if err != nil || out != "[hi] hello" {
		t.Fatalf("FromEnglish = %q, %v", out, err)
	}
	back, err := p.ToEnglish(ctx, out, hi)
	if err != nil || back != "hello" {
		t.Fatalf("ToEnglish = %q, %v", back, err)
	}
	if len(m.CallsFor(true)) != 1 || len(m.CallsFor(false)) != 1 {
		t.Errorf("calls = %+v, want one in each direction", m.Calls)
	}
}

func TestPivot_TwoHops(t *testing.T) {
	m := &mock.Provider{}
	p := translate.NewPivot(m)
	fr := language.MustParse("fr")
	ja := language.MustParse("ja")

	out, err := p.Translate(context.Background(), "[fr] bonjour", fr, ja)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "[ja] bonjour" {
		t.Errorf("out = %q, want %q", out, "[ja] bonjour")
	}
	if len(m.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(m.Calls))
	}
	for i, want := range []translate.Pair{{From: fr, To: language.English}, {From: language.English, To: ja}} {
		if m.Calls[i].Pair != want {
			t.Errorf("call %d pair = %v, want %v", i, m.Calls[i].Pair, want)
		}
	}
}

func TestPivot_Errors(t *testing.T) {
	upstream := errors.New("down")
	p := translate.NewPivot(&mock.Provider{Err: upstream})

	if _, err := p.Translate(context.Background(), "x", language.Language{}, language.English); !errors.Is(err, language.ErrUnsupported) {
		t.Errorf("zero language: err = %v, want ErrUnsupported", err)
	}
	if _, err := p.Translate(context.Background(), "x", language.MustParse("gu"), language.MustParse("ta")); !errors.Is(err, upstream) {
		t.Errorf("err = %v, want upstream error", err)
	}
}
