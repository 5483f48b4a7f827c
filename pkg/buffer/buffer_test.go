package buffer

import (
	"testing"
)

func TestNew_RejectsBadShape(t *testing.T) {
	if _, err := New(0, 5, 0); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := New(1, 0, 0); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := New(-1, -1, 0); err == nil {
		t.Error("expected error for negative shape")
	}
}

func TestNew_Prefill(t *testing.T) {
	b := MustNew(2, 4, 0.5)
	for ch := 0; ch < 2; ch++ {
		for _, v := range b.Row(ch) {
			if v != 0.5 {
				t.Fatalf("prefill: got %v, want 0.5", v)
			}
		}
	}
}

func TestAppend_PreservesWidthAndOrder(t *testing.T) {
	b := MustNew(1, 5, 0)

	// W=5, append 1..6: window must end as [2,3,4,5,6].
	for v := 1.0; v <= 6.0; v++ {
		if err := b.Append([]float64{v}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if b.Width() != 5 {
		t.Errorf("width changed: got %d, want 5", b.Width())
	}
	want := []float64{2, 3, 4, 5, 6}
	got := b.Row(0)
	if len(got) != len(want) {
		t.Fatalf("row length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAppend_RejectsWrongColumnSize(t *testing.T) {
	b := MustNew(2, 3, 0)
	if err := b.Append([]float64{1}); err == nil {
		t.Error("expected error for short column")
	}
	if err := b.Append([]float64{1, 2, 3}); err == nil {
		t.Error("expected error for long column")
	}
}

func TestNewest(t *testing.T) {
	b := MustNew(3, 2, 0)
	b.Append([]float64{1, 2, 3})
	b.Append([]float64{4, 5, 6})

	got := b.Newest()
	want := []float64{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("newest[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSnapshot_IsIsolated(t *testing.T) {
	b := MustNew(1, 3, 0)
	b.Append([]float64{1})

	snap := b.Snapshot()
	snap[0][2] = 99

	if b.Row(0)[2] != 1 {
		t.Error("mutating a snapshot leaked into the buffer")
	}

	// And the other way: appending must not disturb an old snapshot.
	snap2 := b.Snapshot()
	b.Append([]float64{7})
	if snap2[0][2] != 1 {
		t.Error("append leaked into a previously taken snapshot")
	}
}
