// mask.go - Feste Logit-Maske ueber Position und gemeinsames Vokabular
//
// Position p erzeugt die Logits fuer Token p+1. Mit b = TextSeqLen-1:
// - p < b: nur Text-Ids [0, NumTextTokens)
// - b <= p < SeqLen-1: nur Bild-Ids [NumTextTokens, NumTextTokens+NumImageTokens)
// - p == SeqLen-1: nur EOS
//
// Die Maske wird einmal erstellt und danach nur noch gelesen.
package dalle

import (
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/types/errtypes"
)

// LogitsMask markiert pro Position die nicht erlaubten Ids
type LogitsMask struct {
	seqLen, total int
	disallowed    []bool
}

// NewLogitsMask erstellt die Maske fuer die gegebene Konfiguration
func NewLogitsMask(c Config) *LogitsMask {
	seqLen, total := c.SeqLen(), c.TotalTokens()
	eos := total - 1
	boundary := c.TextSeqLen - 1

	m := &LogitsMask{seqLen: seqLen, total: total, disallowed: make([]bool, seqLen*total)}
	for p := range seqLen {
		row := m.disallowed[p*total : (p+1)*total]
		for id := range row {
			switch {
			case p == seqLen-1:
				row[id] = id != eos
			case p >= boundary:
				row[id] = id < c.NumTextTokens || id == eos
			default:
				row[id] = id >= c.NumTextTokens
			}
		}
	}
	return m
}

// SeqLen gibt die Anzahl der Positionen zurueck
func (m *LogitsMask) SeqLen() int { return m.seqLen }

// Disallowed meldet, ob id an Position pos maskiert ist
func (m *LogitsMask) Disallowed(pos, id int) bool {
	return m.disallowed[pos*m.total+id]
}

// Allowed gibt die an Position pos erlaubten Ids zurueck
func (m *LogitsMask) Allowed(pos int) []int {
	var ids []int
	for id, d := range m.disallowed[pos*m.total : (pos+1)*m.total] {
		if !d {
			ids = append(ids, id)
		}
	}
	return ids
}

// Apply ueberschreibt maskierte Eintraege von logits [B, L, V] in-place mit ml.MaxNeg.
// Verwendet wird der Ausschnitt der ersten L Positionen. Apply ist idempotent.
func (m *LogitsMask) Apply(logits *ml.Array) error {
	if logits.NDim() != 3 || logits.Dim(1) > m.seqLen || logits.Dim(2) != m.total {
		return errtypes.Shape("logits mask", logits.Shape(), "expected [batch, <=%d, %d]", m.seqLen, m.total)
	}

	n := logits.Dim(1) * m.total
	data := logits.Data()
	for b := range logits.Dim(0) {
		row := data[b*n : (b+1)*n]
		for i, d := range m.disallowed[:n] {
			if d {
				row[i] = ml.MaxNeg
			}
		}
	}
	return nil
}
