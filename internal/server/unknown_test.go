package server

import (
	"testing"
	"time"

	"lumi/internal/weight"
)

func ids(records []UnknownLookup) []weight.DatasetID {
	result := make([]weight.DatasetID, len(records))
	for i, r := range records {
		result[i] = r.DatasetID
	}
	return result
}

func TestUnknownLog_NewUnknownLog(t *testing.T) {
	t.Run("positive size", func(t *testing.T) {
		l := NewUnknownLog(3)
		if l.Len() != 0 {
			t.Errorf("expected len=0, got %d", l.Len())
		}
	})

	t.Run("zero size panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for size=0")
			}
		}()
		NewUnknownLog(0)
	})
}

func TestUnknownLog_Push(t *testing.T) {
	l := NewUnknownLog(3)
	now := time.Now()

	l.Push(1, now)
	l.Push(2, now)

	got := ids(l.Recent())
	expected := []weight.DatasetID{1, 2}
	if len(got) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Recent()[%d]: expected %d, got %d", i, expected[i], got[i])
		}
	}
	if !l.Recent()[0].Time.Equal(now) {
		t.Error("record time should be kept")
	}
}

func TestUnknownLog_OverwriteOnFull(t *testing.T) {
	l := NewUnknownLog(3)

	for i := 1; i <= 7; i++ {
		l.Push(weight.DatasetID(i), time.Now())
		if l.Len() > 3 {
			t.Errorf("len (%d) > size after push %d", l.Len(), i)
		}
	}

	got := ids(l.Recent())
	expected := []weight.DatasetID{5, 6, 7}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("after overwrite: expected %d at %d, got %d", expected[i], i, got[i])
		}
	}
}
