// shape.go - Form-Operationen
//
// Dieses Modul enthaelt:
// - Transpose: Beliebige Achsen-Permutation
// - Concat: Verkettung entlang einer Achse
// - Slice: Ausschnitt [start, end) entlang einer Achse
// - Take: Zeilen-Lookup (Embedding) mit Bereichspruefung
package ml

import (
	"errors"
	"fmt"
	"slices"
)

// mul gibt das Produkt der Dimensionen zurueck, 1 fuer einen Skalar
func mul(dims ...int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// ErrIndexOutOfRange wird von Take fuer ungueltige Indizes geliefert.
var ErrIndexOutOfRange = errors.New("ml: index out of range")

// Transpose permutiert die Achsen von a gemaess perm.
func Transpose(a *Array, perm ...int) *Array {
	if len(perm) != a.NDim() {
		panic(fmt.Sprintf("ml: transpose %v with permutation %v", a.shape, perm))
	}

	shape := make([]int, len(perm))
	for i, p := range perm {
		shape[i] = a.shape[p]
	}

	strides := make([]int, a.NDim())
	s := 1
	for i := a.NDim() - 1; i >= 0; i-- {
		strides[i] = s
		s *= a.shape[i]
	}

	out := Zeros(shape...)
	idx := make([]int, len(shape))
	for i := range out.data {
		off := 0
		for d, x := range idx {
			off += x * strides[perm[d]]
		}
		out.data[i] = a.data[off]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// Concat verkettet Arrays entlang der Achse ax. Alle anderen Achsen muessen uebereinstimmen.
func Concat(ax int, arrays ...*Array) *Array {
	if len(arrays) == 0 {
		panic("ml: concat without arrays")
	}

	first := arrays[0]
	ax = axis(ax, first.NDim())
	shape := first.Shape()
	shape[ax] = 0
	for _, a := range arrays {
		if a.NDim() != first.NDim() {
			panic(fmt.Sprintf("ml: concat %v with %v", first.shape, a.shape))
		}
		for d := range a.shape {
			if d != ax && a.shape[d] != first.shape[d] {
				panic(fmt.Sprintf("ml: concat %v with %v along axis %d", first.shape, a.shape, ax))
			}
		}
		shape[ax] += a.shape[ax]
	}

	out := Zeros(shape...)
	outer, _, inner := split(shape, ax)
	off := 0
	for o := range outer {
		for _, a := range arrays {
			n := a.shape[ax] * inner
			off += copy(out.data[off:], a.data[o*n:(o+1)*n])
		}
	}
	return out
}

// Slice gibt eine Kopie des Bereichs [start, end) entlang der Achse ax zurueck.
func Slice(a *Array, ax, start, end int) *Array {
	ax = axis(ax, a.NDim())
	if start < 0 || end > a.shape[ax] || start > end {
		panic(fmt.Sprintf("ml: slice [%d:%d] of axis %d with shape %v", start, end, ax, a.shape))
	}

	shape := a.Shape()
	shape[ax] = end - start
	out := Zeros(shape...)
	outer, n, inner := split(a.shape, ax)
	w := (end - start) * inner
	for o := range outer {
		copy(out.data[o*w:(o+1)*w], a.data[(o*n+start)*inner:(o*n+end)*inner])
	}
	return out
}

// Take liest die Zeilen ids aus der Matrix w [V, D] und gibt [len(ids), D] zurueck.
func Take(w *Array, ids []int32) (*Array, error) {
	if w.NDim() != 2 {
		panic(fmt.Sprintf("ml: take from array of shape %v", w.shape))
	}

	v, d := w.shape[0], w.shape[1]
	out := Zeros(len(ids), d)
	for i, id := range ids {
		if id < 0 || int(id) >= v {
			return nil, fmt.Errorf("%w: id %d not in [0, %d)", ErrIndexOutOfRange, id, v)
		}
		copy(out.data[i*d:(i+1)*d], w.data[int(id)*d:(int(id)+1)*d])
	}
	return out, nil
}

// Stack fuegt gleich geformte Arrays entlang einer neuen ersten Achse zusammen.
func Stack(arrays ...*Array) *Array {
	if len(arrays) == 0 {
		panic("ml: stack without arrays")
	}
	shape := arrays[0].Shape()
	data := make([]float32, 0, len(arrays)*arrays[0].Size())
	for _, a := range arrays {
		if !slices.Equal(a.shape, shape) {
			panic(fmt.Sprintf("ml: stack %v with %v", shape, a.shape))
		}
		data = append(data, a.data...)
	}
	return NewArray(data, append([]int{len(arrays)}, shape...)...)
}
