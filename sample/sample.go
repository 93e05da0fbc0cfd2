// sample.go - Logit-Transformationen und Sampler fuer die Bild-Token-Generierung
//
// Dieses Modul enthaelt:
// - Transform: Schnittstelle fuer Logit-Transformationen
// - Threshold: Top-k mit k = max(floor((1-t)*V), 1)
// - TopK: Behaelt die k groessten Logits, der Rest wird -Inf
// - Temperature: Skaliert die Logits
// - Weighted: Kategorisches Sampling ueber die Softmax-Verteilung
package sample

import (
	"cmp"
	"errors"
	"math"
	"slices"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

type Transform interface {
	Apply([]float64) ([]float64, error)
}

type Sampler interface {
	Sample([]float32) (int, error)
}

func softmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	tt := make([]float64, len(logits))
	for i, v := range logits {
		tt[i] = math.Exp(v - lse)
	}
	return tt
}

type Temperature float64

func (t Temperature) Apply(logits []float64) ([]float64, error) {
	if t <= 0 || math.IsNaN(float64(t)) {
		return nil, errors.New("temperature must be greater than 0")
	}
	if t == 1 {
		return logits, nil
	}

	// subtracting max logit to avoid under/overflow
	maxLogit := slices.Max(logits)
	for i := range logits {
		logits[i] = (logits[i] - maxLogit) / float64(t)
	}

	return logits, nil
}

type logitMap struct {
	index int
	logit float64
}

func logitMapComparator(a, b logitMap) int {
	if c := -cmp.Compare(a.logit, b.logit); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

type TopK int

func (k TopK) Apply(logits []float64) ([]float64, error) {
	if k <= 0 {
		return nil, errors.New("k must be greater than 0")
	}
	if int(k) >= len(logits) {
		return logits, nil
	}

	q := pq.NewWith(logitMapComparator)
	for i, logit := range logits {
		q.Enqueue(logitMap{index: i, logit: logit})
	}

	keep := make(map[int]struct{}, int(k))
	for range k {
		lm, _ := q.Dequeue()
		keep[lm.index] = struct{}{}
	}

	for i := range logits {
		if _, ok := keep[i]; !ok {
			logits[i] = math.Inf(-1)
		}
	}

	return logits, nil
}

// Threshold ist ein relativer Top-k-Filter: bei Schwelle t und V Logits
// bleiben max(floor((1-t)*V), 1) Logits erhalten.
type Threshold float64

// K gibt die Anzahl der erhaltenen Logits fuer ein Vokabular der Groesse v zurueck
func (t Threshold) K(v int) int {
	return max(int(math.Floor((1-float64(t))*float64(v))), 1)
}

func (t Threshold) Apply(logits []float64) ([]float64, error) {
	if t < 0 || t > 1 || math.IsNaN(float64(t)) {
		return nil, errors.New("threshold must be between 0 and 1")
	}
	return TopK(t.K(len(logits))).Apply(logits)
}

type weighted struct {
	src        rand.Source
	transforms []Transform
}

// Weighted zieht einen Index gemaess der Softmax-Verteilung der transformierten Logits.
// Ist src nil, wird die globale Zufallsquelle verwendet.
func Weighted(src rand.Source, transforms ...Transform) Sampler {
	return weighted{src: src, transforms: transforms}
}

func (s weighted) Sample(logits []float32) (int, error) {
	logits64 := make([]float64, len(logits))
	for i, v := range logits {
		logits64[i] = float64(v)
	}

	var err error
	for _, t := range s.transforms {
		logits64, err = t.Apply(logits64)
		if err != nil {
			return -1, err
		}
	}

	logitsCopy := make([]float64, 0, len(logits))
	indices := make([]int, 0, len(logits))
	for i, logit := range logits64 {
		if !math.IsInf(logit, -1) {
			logitsCopy = append(logitsCopy, logit)
			indices = append(indices, i)
		}
	}

	if len(logitsCopy) == 0 {
		return -1, errors.New("no valid logits found for weighted sampling")
	}

	probs := softmax(logitsCopy)
	w := sampleuv.NewWeighted(probs, s.src)
	if idx, ok := w.Take(); ok {
		return indices[idx], nil
	}
	return -1, errors.New("weighted sampler failed, no valid token found")
}
