// loss.go - Verlustfunktionen
package ml

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// CrossEntropy gibt die mittlere Kreuzentropie zwischen logits [N, V] und labels [N] zurueck.
func CrossEntropy(logits *Array, labels []int32) (float32, error) {
	if logits.NDim() != 2 || logits.shape[0] != len(labels) {
		return 0, fmt.Errorf("ml: cross entropy logits %v with %d labels", logits.shape, len(labels))
	}
	if len(labels) == 0 {
		return 0, nil
	}

	v := logits.shape[1]
	row := make([]float64, v)
	var total float64
	for i, label := range labels {
		if label < 0 || int(label) >= v {
			return 0, fmt.Errorf("%w: label %d not in [0, %d)", ErrIndexOutOfRange, label, v)
		}
		for j, x := range logits.data[i*v : (i+1)*v] {
			row[j] = float64(x)
		}
		total += floats.LogSumExp(row) - row[label]
	}
	return float32(total / float64(len(labels))), nil
}

// MSE gibt den mittleren quadratischen Fehler zwischen a und b zurueck.
func MSE(a, b *Array) float32 {
	if !slices.Equal(a.shape, b.shape) {
		panic(fmt.Sprintf("ml: mse %v vs %v", a.shape, b.shape))
	}
	if a.Size() == 0 {
		return 0
	}

	var sum float64
	for i, x := range a.data {
		d := float64(x) - float64(b.data[i])
		sum += d * d
	}
	return float32(sum / float64(a.Size()))
}
