package arena

import "testing"

type node struct {
	id   int
	next *node
}

func TestAllocStablePointers(t *testing.T) {
	var s Slab[node]

	// Allocate well past one chunk and make sure earlier pointers still
	// address the values written through them.
	ptrs := make([]*node, 0, 1000)
	for i := 0; i < 1000; i++ {
		p := s.Alloc()
		p.id = i
		ptrs = append(ptrs, p)
	}

	if s.Len() != 1000 {
		t.Fatalf("Len = %d, want 1000", s.Len())
	}
	for i, p := range ptrs {
		if p.id != i {
			t.Fatalf("pointer %d reads id %d", i, p.id)
		}
	}
}

func TestAllocZeroed(t *testing.T) {
	var s Slab[node]
	p := s.Alloc()
	if p.id != 0 || p.next != nil {
		t.Errorf("new allocation not zeroed: %+v", *p)
	}
}

func TestRelease(t *testing.T) {
	var s Slab[node]
	for i := 0; i < 10; i++ {
		s.Alloc()
	}
	s.Release()
	if s.Len() != 0 {
		t.Errorf("Len after Release = %d, want 0", s.Len())
	}

	// The slab is reusable after Release.
	p := s.Alloc()
	if p == nil || s.Len() != 1 {
		t.Error("slab not reusable after Release")
	}
}
