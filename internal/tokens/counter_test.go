package tokens

import (
	"strings"
	"testing"
)

func TestTiktokenCounter_Count(t *testing.T) {
	counter, err := NewTiktokenCounter(DefaultEncoding, 16)
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}

	if got := counter.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}

	short := counter.Count("1. e4 e5 2. Nf3 Nc6")
	if short <= 0 {
		t.Fatalf("Count() = %d, want positive", short)
	}
	long := counter.Count(strings.Repeat("1. e4 e5 2. Nf3 Nc6 ", 20))
	if long <= short {
		t.Errorf("Count(long) = %d, want more than %d", long, short)
	}
	if again := counter.Count("1. e4 e5 2. Nf3 Nc6"); again != short {
		t.Errorf("Count() not deterministic: %d then %d", short, again)
	}
}

func TestTiktokenCounter_NoCache(t *testing.T) {
	cached, err := NewTiktokenCounter("", 8)
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}
	plain, err := NewTiktokenCounter(DefaultEncoding, 0)
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}
	text := "[Position] rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"
	if cached.Count(text) != plain.Count(text) {
		t.Errorf("cache changes counts: %d vs %d", cached.Count(text), plain.Count(text))
	}
}

func TestNewTiktokenCounter_UnknownEncoding(t *testing.T) {
	if _, err := NewTiktokenCounter("no_such_encoding", 0); err == nil {
		t.Error("NewTiktokenCounter() expected error for unknown encoding")
	}
}
