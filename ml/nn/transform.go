// transform.go - Schnittstellen fuer Sequenz-Transformationen und Trainingsmodus
package nn

import "github.com/ollama/dalle/ml"

// Transform bildet x [B, L, D] auf [B, L, D] ab. mask hat die Form [B][L],
// true markiert sichtbare Positionen; nil bedeutet alles sichtbar.
type Transform interface {
	Forward(x *ml.Array, mask [][]bool) (*ml.Array, error)
}

// Trainer wird von Komponenten implementiert, deren Verhalten vom
// Trainingsmodus abhaengt (Dropout, Gumbel-Rauschen).
type Trainer interface {
	SetTraining(training bool)
	Training() bool
}

// SetTraining setzt den Modus auf v, falls v ein Trainer ist.
func SetTraining(v any, training bool) {
	if t, ok := v.(Trainer); ok {
		t.SetTraining(training)
	}
}
