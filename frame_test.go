package flowbus

import "testing"

func TestFrameInsertEvictsOldest(t *testing.T) {
	f := NewFrame[int](3)
	f.Insert(1)
	f.Insert(2)
	f.Insert(3)
	f.Insert(4)

	if got, want := f.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if got, want := f.Values(), []int{2, 3, 4}; !intSliceEqual(got, want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
}

func TestFrameDepthClampedToOne(t *testing.T) {
	f := NewFrame[int](0)
	if got, want := f.Depth(), 1; got != want {
		t.Fatalf("Depth() = %d, want %d", got, want)
	}
}

func TestFrameCloneIsIndependent(t *testing.T) {
	f := NewFrame[int](2)
	f.Insert(1)
	f.Insert(2)

	clone := f.Clone()
	clone.Insert(3)

	if got, want := f.Values(), []int{1, 2}; !intSliceEqual(got, want) {
		t.Fatalf("original mutated by clone insert: Values() = %v, want %v", got, want)
	}
	if got, want := clone.Values(), []int{2, 3}; !intSliceEqual(got, want) {
		t.Fatalf("clone Values() = %v, want %v", got, want)
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
