// random.go - Zufallsquelle fuer Initialisierung, Dropout und Gumbel-Rauschen
//
// Dieses Modul enthaelt:
// - Source: Deterministische PCG-Zufallsquelle (nicht thread-safe)
// - Normal/Uniform/Gumbel: Zufalls-Arrays
// - Dropout: Inverted Dropout
package ml

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source ist eine deterministische Zufallsquelle. Eine Source darf nicht
// gleichzeitig aus mehreren Goroutinen benutzt werden.
type Source struct {
	src rand.Source
	rng *rand.Rand
}

// NewSource erstellt eine Zufallsquelle mit festem Seed.
func NewSource(seed uint64) *Source {
	src := rand.NewSource(seed)
	return &Source{src: src, rng: rand.New(src)}
}

// NewRandomSource erstellt eine Zufallsquelle, deren Seed aus der Uhrzeit stammt.
func NewRandomSource() *Source {
	return NewSource(uint64(time.Now().UnixNano()))
}

// Src gibt die zugrundeliegende Quelle fuer gonum-Verteilungen zurueck.
func (s *Source) Src() rand.Source {
	return s.src
}

// Float64 gibt eine gleichverteilte Zahl in [0, 1) zurueck.
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Normal gibt ein Array mit N(0, std^2)-verteilten Elementen zurueck.
func (s *Source) Normal(std float64, shape ...int) *Array {
	d := distuv.Normal{Mu: 0, Sigma: std, Src: s.src}
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = float32(d.Rand())
	}
	return a
}

// Uniform gibt ein Array mit in [lo, hi) gleichverteilten Elementen zurueck.
func (s *Source) Uniform(lo, hi float64, shape ...int) *Array {
	d := distuv.Uniform{Min: lo, Max: hi, Src: s.src}
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = float32(d.Rand())
	}
	return a
}

// Gumbel gibt ein Array mit Standard-Gumbel-Rauschen -log(-log(u)) zurueck.
func (s *Source) Gumbel(shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		u := s.rng.Float64()
		for u == 0 {
			u = s.rng.Float64()
		}
		a.data[i] = float32(-math.Log(-math.Log(u)))
	}
	return a
}

// Dropout setzt Elemente mit Wahrscheinlichkeit p auf 0 und skaliert den Rest mit 1/(1-p).
func (s *Source) Dropout(a *Array, p float64) *Array {
	if p <= 0 {
		return a
	}
	if p >= 1 {
		return Zeros(a.shape...)
	}

	scale := float32(1 / (1 - p))
	out := Zeros(a.shape...)
	for i, x := range a.data {
		if s.rng.Float64() >= p {
			out.data[i] = x * scale
		}
	}
	return out
}
