package models

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, pageSize, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{2000, 50, 40},
		{2001, 50, 41},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.pageSize); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
		}
	}
}

func TestContentHash_IgnoresCaseAndWhitespace(t *testing.T) {
	a := ContentHash("  What is Go? ", "A language")
	b := ContentHash("what is go?", "a LANGUAGE  ")
	if a != b {
		t.Errorf("hashes differ: %s vs %s", a, b)
	}
	if a == ContentHash("what is go?", "a language!") {
		t.Error("different content produced the same hash")
	}
}

func TestFlashcardSource(t *testing.T) {
	if SourceManual.IsAI() {
		t.Error("manual must not be AI")
	}
	if !SourceAIFull.IsAI() || !SourceAIEdited.IsAI() {
		t.Error("ai-full and ai-edited must be AI")
	}
	if FlashcardSource("robot").Valid() {
		t.Error("unknown source must be invalid")
	}
}
