package history

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func fill(b *Buffer, values ...float64) {
	for i, v := range values {
		b.Write(v, t0.Add(time.Duration(i)*time.Second))
	}
}

func TestNewClampsCapacity(t *testing.T) {
	if c := New(0).Cap(); c != 1 {
		t.Errorf("expected capacity 1, got %d", c)
	}
	if c := New(-3).Cap(); c != 1 {
		t.Errorf("expected capacity 1, got %d", c)
	}
}

func TestReadEmpty(t *testing.T) {
	b := New(5)
	for _, k := range []int{-1, 0, 3} {
		if _, ok := b.Read(k); ok {
			t.Errorf("Read(%d) on empty buffer should report no value", k)
		}
	}
}

func TestReadNegativeOffsetsAfterWrap(t *testing.T) {
	b := New(5)
	fill(b, 1, 2, 3, 4, 5, 6)

	want := []float64{6, 5, 4, 3, 2}
	for i, k := range []int{-1, -2, -3, -4, -5} {
		s, ok := b.Read(k)
		if !ok {
			t.Fatalf("Read(%d): expected a value", k)
		}
		if s.Value != want[i] {
			t.Errorf("Read(%d): got %v, want %v", k, s.Value, want[i])
		}
	}
}

func TestReadCarriesTimestamp(t *testing.T) {
	b := New(3)
	b.Write(1.5, t0)
	s, ok := b.Read(-1)
	if !ok || !s.Time.Equal(t0) {
		t.Errorf("expected sample at %v, got %+v (ok=%v)", t0, s, ok)
	}
}

func TestOverwriteEvictsOldest(t *testing.T) {
	const c = 4
	b := New(c)
	fill(b, 10, 11, 12, 13, 14) // C+1 writes

	if b.Len() != c {
		t.Fatalf("expected %d retained samples, got %d", c, b.Len())
	}

	got := b.Ordered()
	want := []float64{11, 12, 13, 14}
	for i := range want {
		if got[i].Value != want[i] {
			t.Errorf("item %d: got %v, want %v", i, got[i].Value, want[i])
		}
	}

	for k := -1; k >= -c; k-- {
		s, _ := b.Read(k)
		if s.Value == 10 {
			t.Errorf("Read(%d) returned the evicted sample", k)
		}
	}
}

func TestPartialFillLeavesSentinels(t *testing.T) {
	b := New(5)
	fill(b, 7, 8)

	if _, ok := b.Read(-3); ok {
		t.Error("Read(-3) after 2 writes should report no value")
	}
	for _, k := range []int{2, 3, 4} {
		if _, ok := b.Read(k); ok {
			t.Errorf("Read(%d) of unwritten slot should report no value", k)
		}
	}

	snap := b.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(snap))
	}
	for i, s := range snap {
		wantValid := i < 2
		if s.Valid != wantValid {
			t.Errorf("slot %d: Valid=%v, want %v", i, s.Valid, wantValid)
		}
		if !s.Valid && s.Value != 0 {
			t.Errorf("slot %d: unwritten slot carries value %v", i, s.Value)
		}
	}
}

func TestReadNonNegativeAddressesRawSlots(t *testing.T) {
	b := New(3)
	fill(b, 1, 2, 3, 4) // slots: [4, 2, 3]

	tests := map[int]float64{0: 4, 1: 2, 2: 3, 3: 4, 5: 3}
	for k, want := range tests {
		s, ok := b.Read(k)
		if !ok || s.Value != want {
			t.Errorf("Read(%d): got %v (ok=%v), want %v", k, s.Value, ok, want)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b := New(2)
	fill(b, 1)
	snap := b.Snapshot()
	b.Write(99, t0)
	if snap[1].Valid {
		t.Error("snapshot should not observe later writes")
	}
}

func TestOrderedEmpty(t *testing.T) {
	if got := New(3).Ordered(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestOrderedMultipleWraps(t *testing.T) {
	b := New(3)
	for i := 0; i < 10; i++ {
		b.Write(float64(i), t0.Add(time.Duration(i)*time.Second))
	}
	got := b.Ordered()
	for i, want := range []float64{7, 8, 9} {
		if got[i].Value != want {
			t.Errorf("item %d: got %v, want %v", i, got[i].Value, want)
		}
		if i > 0 && !got[i].Time.After(got[i-1].Time) {
			t.Errorf("item %d: timestamps not increasing", i)
		}
	}
}
