package textproc

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"voice-chat/internal/domain"
)

func TestSegment_Scenario(t *testing.T) {
	fragments, err := Segment("Hello, world! This is a test.", 20)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if fragments[0].Text != "Hello, world! This i" || fragments[1].Text != "s a test." {
		t.Fatalf("unexpected fragments: %q", fragmentTexts(fragments))
	}
	if fragments[0].IsLast || !fragments[1].IsLast {
		t.Fatalf("expected is_last=[false,true], got [%v,%v]", fragments[0].IsLast, fragments[1].IsLast)
	}
	if fragments[1].Seq != 1 || fragments[1].Start != 20 || fragments[1].End != 29 {
		t.Fatalf("unexpected span for last fragment: %+v", fragments[1])
	}
}

func TestSegment_ReconstructsInput(t *testing.T) {
	texts := []string{
		"a",
		"exactly twenty chars",
		"Hello, world! This is a test.",
		strings.Repeat("xyz", 101),
		"ñandú über café — 東京",
	}
	for _, text := range texts {
		for size := 1; size <= 25; size++ {
			fragments, err := Segment(text, size)
			if err != nil {
				t.Fatalf("segment(%q,%d): %v", text, size, err)
			}
			n := utf8.RuneCountInString(text)
			want := (n + size - 1) / size
			if len(fragments) != want {
				t.Fatalf("segment(%q,%d): expected %d fragments, got %d", text, size, want, len(fragments))
			}
			if got := strings.Join(fragmentTexts(fragments), ""); got != text {
				t.Fatalf("segment(%q,%d): reconstruction mismatch %q", text, size, got)
			}
			for i, f := range fragments {
				if f.Seq != i {
					t.Fatalf("expected seq %d, got %d", i, f.Seq)
				}
				if f.IsLast != (i == len(fragments)-1) {
					t.Fatalf("fragment %d has wrong is_last", i)
				}
				if text[f.Start:f.End] != f.Text {
					t.Fatalf("fragment %d span does not match text", i)
				}
				l := utf8.RuneCountInString(f.Text)
				if l < 1 || l > size {
					t.Fatalf("fragment %d length %d outside [1,%d]", i, l, size)
				}
			}
		}
	}
}

func TestSegment_Empty(t *testing.T) {
	fragments, err := Segment("", 20)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fragments == nil || len(fragments) != 0 {
		t.Fatalf("expected empty slice, got %+v", fragments)
	}
}

func TestSegment_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		if _, err := Segment("hola", size); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("size %d: expected ErrInvalidArgument, got %v", size, err)
		}
	}
}

func TestSegment_DoesNotSplitRunes(t *testing.T) {
	fragments, err := Segment("héllo", 2)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	got := fragmentTexts(fragments)
	want := []string{"hé", "ll", "o"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func fragmentTexts(fragments []domain.TextFragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Text
	}
	return out
}
