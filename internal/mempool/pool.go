// Package mempool recycles the tensor and mask buffers allocated per image
// on the inference path, so concurrent workers do not churn the heap with
// megabyte-sized slices.
package mempool

import "sync"

// classStep is the granularity of the size classes.
const classStep = 1024

// sizeClass rounds n up to the next multiple of classStep, with classStep as
// the smallest class.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

// Pool hands out slices of T grouped by size class. The zero value is ready
// to use and safe for concurrent use.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool of *[]T
	zero    bool
}

// NewPool returns a pool; with zero set, Get clears the returned slice.
func NewPool[T any](zero bool) *Pool[T] {
	return &Pool[T]{zero: zero}
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	if sp, ok := p.classes.Load(cls); ok {
		return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a slice of length n. Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	n = max(n, 0)
	cls := sizeClass(n)
	bufp := p.class(cls).Get().(*[]T) //nolint:forcetypeassert // New returns *[]T
	buf := *bufp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	if p.zero {
		clear(buf)
	}
	return buf
}

// Put returns buf to the pool. Nil slices and slices that did not come from
// a pool class are ignored.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil || cap(buf) < classStep || cap(buf)%classStep != 0 {
		return
	}
	buf = buf[:cap(buf)]
	p.class(cap(buf)).Put(&buf)
}

var (
	float32Pool = NewPool[float32](false)
	boolPool    = NewPool[bool](true)
)

// GetFloat32 returns a tensor buffer of length n. Its contents are undefined.
func GetFloat32(n int) []float32 { return float32Pool.Get(n) }

// PutFloat32 recycles a buffer from GetFloat32.
func PutFloat32(buf []float32) { float32Pool.Put(buf) }

// GetBool returns a mask of length n with every element false.
func GetBool(n int) []bool { return boolPool.Get(n) }

// PutBool recycles a mask from GetBool.
func PutBool(buf []bool) { boolPool.Put(buf) }
