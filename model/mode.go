package model

import "github.com/ollama/dalle/ml/nn"

// Eval versetzt m in den Auswertungsmodus und gibt eine Funktion zurueck,
// die den vorherigen Modus wiederherstellt:
//
//	defer model.Eval(m)()
func Eval(m nn.Trainer) (restore func()) {
	return setMode(m, false)
}

// Train versetzt m in den Trainingsmodus, analog zu Eval.
func Train(m nn.Trainer) (restore func()) {
	return setMode(m, true)
}

func setMode(m nn.Trainer, training bool) func() {
	prev := m.Training()
	m.SetTraining(training)
	return func() { m.SetTraining(prev) }
}
