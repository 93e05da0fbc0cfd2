// reduce.go - Reduktionen und Normalisierungen
//
// Dieses Modul enthaelt:
// - Softmax: Ueber die letzte Achse (log-sum-exp stabilisiert)
// - LayerNorm/L2Normalize: Normalisierung ueber die letzte Achse
// - Sum/Mean/Argmax: Reduktion ueber eine beliebige Achse
package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// rows ruft fn fuer jede Zeile der letzten Achse auf.
func rows(a *Array, fn func(i int, row []float32)) {
	n := a.Dim(-1)
	if n == 0 {
		return
	}
	for i := 0; i*n < len(a.data); i++ {
		fn(i, a.data[i*n:(i+1)*n])
	}
}

// Softmax normalisiert die letzte Achse zu einer Wahrscheinlichkeitsverteilung.
func Softmax(a *Array) *Array {
	out := Zeros(a.shape...)
	n := a.Dim(-1)
	buf := make([]float64, n)
	rows(a, func(i int, row []float32) {
		for j, x := range row {
			buf[j] = float64(x)
		}
		lse := floats.LogSumExp(buf)
		dst := out.data[i*n : (i+1)*n]
		for j, x := range buf {
			dst[j] = float32(math.Exp(x - lse))
		}
	})
	return out
}

// LayerNorm normalisiert die letzte Achse auf Mittelwert 0 und Varianz 1
// und skaliert anschliessend mit weight und bias (beide [D], bias optional).
func LayerNorm(a, weight, bias *Array, eps float32) *Array {
	out := Zeros(a.shape...)
	n := a.Dim(-1)
	rows(a, func(i int, row []float32) {
		var mean, variance float64
		for _, x := range row {
			mean += float64(x)
		}
		mean /= float64(n)
		for _, x := range row {
			d := float64(x) - mean
			variance += d * d
		}
		variance /= float64(n)
		inv := 1 / math.Sqrt(variance+float64(eps))

		dst := out.data[i*n : (i+1)*n]
		for j, x := range row {
			y := float32((float64(x) - mean) * inv)
			if weight != nil {
				y *= weight.data[j]
			}
			if bias != nil {
				y += bias.data[j]
			}
			dst[j] = y
		}
	})
	return out
}

// L2Normalize teilt jede Zeile der letzten Achse durch ihre euklidische Norm.
func L2Normalize(a *Array) *Array {
	out := Zeros(a.shape...)
	n := a.Dim(-1)
	rows(a, func(i int, row []float32) {
		var sum float64
		for _, x := range row {
			sum += float64(x) * float64(x)
		}
		norm := max(math.Sqrt(sum), 1e-12)
		dst := out.data[i*n : (i+1)*n]
		for j, x := range row {
			dst[j] = float32(float64(x) / norm)
		}
	})
	return out
}

// Sum summiert ueber die Achse ax. Die Achse entfaellt im Ergebnis.
func Sum(a *Array, ax int) *Array {
	ax = axis(ax, a.NDim())
	outer, n, inner := split(a.shape, ax)
	shape := append(a.Shape()[:ax], a.shape[ax+1:]...)
	out := Zeros(shape...)
	for o := range outer {
		for k := range n {
			src := a.data[(o*n+k)*inner : (o*n+k+1)*inner]
			dst := out.data[o*inner : (o+1)*inner]
			for j, x := range src {
				dst[j] += x
			}
		}
	}
	return out
}

// Mean mittelt ueber die Achse ax.
func Mean(a *Array, ax int) *Array {
	n := a.Dim(ax)
	if n == 0 {
		return Sum(a, ax)
	}
	return MulScalar(Sum(a, ax), 1/float32(n))
}

// Argmax gibt je Position den Index des Maximums entlang ax zurueck,
// row-major ueber die verbleibenden Achsen abgeflacht.
// Bei Gleichstand gewinnt der kleinste Index.
func Argmax(a *Array, ax int) []int32 {
	ax = axis(ax, a.NDim())
	outer, n, inner := split(a.shape, ax)
	out := make([]int32, outer*inner)
	for o := range outer {
		for j := range inner {
			best, bestIdx := float32(math.Inf(-1)), 0
			for k := range n {
				if x := a.data[(o*n+k)*inner+j]; x > best {
					best, bestIdx = x, k
				}
			}
			out[o*inner+j] = int32(bestIdx)
		}
	}
	return out
}
