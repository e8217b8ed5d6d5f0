// Package arena provides chunked slab allocation for module-owned objects.
//
// A Slab hands out pointers into fixed-capacity chunks. Chunks never grow
// past their capacity, so returned pointers stay valid for the life of the
// slab. Release drops every chunk at once; the owner is responsible for
// rejecting further use.
package arena

// chunkSize is the number of objects per chunk.
const chunkSize = 256

// Slab allocates values of T in chunks and returns stable pointers.
// The zero value is ready to use.
type Slab[T any] struct {
	chunks [][]T
	n      int
}

// Alloc returns a pointer to a new zero value.
func (s *Slab[T]) Alloc() *T {
	if len(s.chunks) == 0 || len(s.chunks[len(s.chunks)-1]) == chunkSize {
		s.chunks = append(s.chunks, make([]T, 0, chunkSize))
	}
	c := &s.chunks[len(s.chunks)-1]
	*c = append(*c, *new(T))
	s.n++
	return &(*c)[len(*c)-1]
}

// Len returns the number of live allocations.
func (s *Slab[T]) Len() int {
	return s.n
}

// Release drops all chunks. Pointers handed out earlier keep their backing
// memory alive through the garbage collector but no longer belong to the
// slab.
func (s *Slab[T]) Release() {
	s.chunks = nil
	s.n = 0
}
