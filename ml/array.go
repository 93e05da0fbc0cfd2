// array.go - Dichte float32-Arrays als Rechen-Substrat
//
// Dieses Modul enthaelt:
// - Array: Row-major float32-Tensor mit beliebigem Rang
// - NewArray/Zeros/Full: Konstruktoren
// - Shape/Dim/Size/Data: Zugriff auf Form und Daten
// - Reshape: Form-Aenderung ohne Kopie (-1 wird inferiert)
//
// Formfehler in den Kernels sind Programmierfehler und fuehren zu panic.
// Modell-Funktionen validieren ihre Eingaben vorher und liefern Fehler.
package ml

import (
	"fmt"
	"slices"
)

// Array ist ein dichter, row-major abgelegter float32-Tensor.
type Array struct {
	shape []int
	data  []float32
}

// NewArray erstellt ein Array ueber data. data wird nicht kopiert.
func NewArray(data []float32, shape ...int) *Array {
	if n := mul(shape...); n != len(data) {
		panic(fmt.Sprintf("ml: shape %v needs %d elements, got %d", shape, n, len(data)))
	}
	return &Array{shape: slices.Clone(shape), data: data}
}

// Zeros erstellt ein mit Nullen gefuelltes Array.
func Zeros(shape ...int) *Array {
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("ml: negative dimension in %v", shape))
		}
	}
	return &Array{shape: slices.Clone(shape), data: make([]float32, mul(shape...))}
}

// Full erstellt ein Array, dessen Elemente alle v sind.
func Full(v float32, shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = v
	}
	return a
}

// Ones ist Full(1, shape...).
func Ones(shape ...int) *Array {
	return Full(1, shape...)
}

// Shape gibt eine Kopie der Form zurueck.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// NDim gibt den Rang zurueck.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Dim gibt die Groesse der Achse i zurueck. Negative Indizes zaehlen von hinten.
func (a *Array) Dim(i int) int {
	return a.shape[axis(i, len(a.shape))]
}

// Size gibt die Anzahl der Elemente zurueck.
func (a *Array) Size() int {
	return len(a.data)
}

// Data gibt den zugrundeliegenden Speicher zurueck (keine Kopie).
func (a *Array) Data() []float32 {
	return a.data
}

// Item gibt das einzige Element eines Arrays der Groesse 1 zurueck.
func (a *Array) Item() float32 {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("ml: Item on array of shape %v", a.shape))
	}
	return a.data[0]
}

// At liest ein Element ueber seinen mehrdimensionalen Index.
func (a *Array) At(idx ...int) float32 {
	return a.data[a.offset(idx)]
}

// SetAt schreibt ein Element ueber seinen mehrdimensionalen Index.
func (a *Array) SetAt(v float32, idx ...int) {
	a.data[a.offset(idx)] = v
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ml: index %v for shape %v", idx, a.shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.shape[i] {
			panic(fmt.Sprintf("ml: index %v out of range for shape %v", idx, a.shape))
		}
		off = off*a.shape[i] + x
	}
	return off
}

// Clone gibt eine tiefe Kopie zurueck.
func (a *Array) Clone() *Array {
	return &Array{shape: slices.Clone(a.shape), data: slices.Clone(a.data)}
}

// Set ueberschreibt die Daten in-place. Die Identitaet des Arrays bleibt erhalten.
func (a *Array) Set(data []float32) {
	if len(data) != len(a.data) {
		panic(fmt.Sprintf("ml: Set with %d elements on shape %v", len(data), a.shape))
	}
	copy(a.data, data)
}

// Reshape gibt eine Sicht mit neuer Form auf dieselben Daten zurueck.
// Hoechstens eine Dimension darf -1 sein und wird inferiert.
func (a *Array) Reshape(shape ...int) *Array {
	shape = slices.Clone(shape)
	infer, known := -1, 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("ml: reshape %v has more than one -1", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(a.data)%known != 0 {
			panic(fmt.Sprintf("ml: cannot reshape %v to %v", a.shape, shape))
		}
		shape[infer] = len(a.data) / known
	}
	if mul(shape...) != len(a.data) {
		panic(fmt.Sprintf("ml: cannot reshape %v to %v", a.shape, shape))
	}
	return &Array{shape: shape, data: a.data}
}

// String formatiert das Array wie Dump.
func (a *Array) String() string {
	return Dump(a, 4)
}

// axis normalisiert einen (ggf. negativen) Achsen-Index.
func axis(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		panic(fmt.Sprintf("ml: axis %d out of range for rank %d", i, n))
	}
	return i
}

// split zerlegt eine Form an einer Achse in aeussere Groesse, Achsenlaenge und innere Groesse.
func split(shape []int, ax int) (outer, n, inner int) {
	return mul(shape[:ax]...), shape[ax], mul(shape[ax+1:]...)
}
