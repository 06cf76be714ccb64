package service

import "testing"

func TestOrderInsertAppendsWhenDependentAbsent(t *testing.T) {
	o := NewOrder()
	o.Insert(5, -1)
	o.Insert(7, -1)

	got := o.Indices()
	want := []int{5, 7}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
}

func TestOrderInsertPlacesDependencyBeforeDependent(t *testing.T) {
	o := NewOrder()
	o.Insert(1, -1) // 1
	o.Insert(2, -1) // 1 2
	o.Insert(3, 2)  // 1 3 2: 2 depends on 3, so 3 must precede 2

	got := o.Indices()
	want := []int{1, 3, 2}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Indices() = %v, want %v", got, want)
		}
	}
}

func TestOrderReverseIsIndicesBackwards(t *testing.T) {
	o := NewOrder()
	o.Insert(1, -1)
	o.Insert(2, -1)
	o.Insert(3, -1)

	fwd := o.Indices()
	rev := o.Reverse()
	for i := range fwd {
		if rev[i] != fwd[len(fwd)-1-i] {
			t.Fatalf("Reverse() = %v, want reverse of %v", rev, fwd)
		}
	}
}
