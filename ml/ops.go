// ops.go - Elementweise Operationen
//
// Dieses Modul enthaelt:
// - Add/Sub/Mul: Binaere Operationen mit Suffix-Broadcasting
// - AddScalar/MulScalar: Skalare Operationen
// - Exp/ReLU/GELU: Aktivierungen
//
// Broadcasting: Die Form von b muss ein Suffix der Form von a sein
// (z.B. a [B, L, D] und b [D] oder [L, D]).
package ml

import (
	"fmt"
	"math"
	"slices"
)

// MaxNeg ist der Wert, mit dem maskierte Logits ueberschrieben werden.
const MaxNeg = -math.MaxFloat32

func broadcast(a, b *Array, fn func(x, y float32) float32) *Array {
	if len(b.shape) > len(a.shape) || !slices.Equal(a.shape[len(a.shape)-len(b.shape):], b.shape) {
		panic(fmt.Sprintf("ml: cannot broadcast %v to %v", b.shape, a.shape))
	}

	out := Zeros(a.shape...)
	n := len(b.data)
	if n == 0 {
		return out
	}
	for i, x := range a.data {
		out.data[i] = fn(x, b.data[i%n])
	}
	return out
}

// Add gibt a + b zurueck.
func Add(a, b *Array) *Array {
	return broadcast(a, b, func(x, y float32) float32 { return x + y })
}

// Sub gibt a - b zurueck.
func Sub(a, b *Array) *Array {
	return broadcast(a, b, func(x, y float32) float32 { return x - y })
}

// Mul gibt das elementweise Produkt zurueck.
func Mul(a, b *Array) *Array {
	return broadcast(a, b, func(x, y float32) float32 { return x * y })
}

// Apply wendet fn auf jedes Element an und gibt ein neues Array zurueck.
func Apply(a *Array, fn func(float32) float32) *Array {
	out := Zeros(a.shape...)
	for i, x := range a.data {
		out.data[i] = fn(x)
	}
	return out
}

// AddScalar gibt a + s zurueck.
func AddScalar(a *Array, s float32) *Array {
	return Apply(a, func(x float32) float32 { return x + s })
}

// MulScalar gibt a * s zurueck.
func MulScalar(a *Array, s float32) *Array {
	return Apply(a, func(x float32) float32 { return x * s })
}

// Exp gibt e^a zurueck.
func Exp(a *Array) *Array {
	return Apply(a, func(x float32) float32 { return float32(math.Exp(float64(x))) })
}

// ReLU gibt max(a, 0) zurueck.
func ReLU(a *Array) *Array {
	return Apply(a, func(x float32) float32 { return max(x, 0) })
}

// GELU ist die exakte (erf-basierte) GELU-Aktivierung.
func GELU(a *Array) *Array {
	return Apply(a, func(x float32) float32 {
		return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
	})
}
