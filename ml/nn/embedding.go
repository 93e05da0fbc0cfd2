package nn

import "github.com/ollama/dalle/ml"

type Embedding struct {
	Weight *ml.Array `param:"weight"`
}

func NewEmbedding(src *ml.Source, n, dim int) *Embedding {
	return &Embedding{Weight: src.Normal(1, n, dim)}
}

func (m *Embedding) NumEmbeddings() int {
	return m.Weight.Dim(0)
}

func (m *Embedding) Dim() int {
	return m.Weight.Dim(1)
}

// Forward gibt fuer ids [B][L] die Einbettungen [B, L, D] zurueck.
// Alle Zeilen muessen gleich lang sein.
func (m *Embedding) Forward(ids [][]int32) (*ml.Array, error) {
	if len(ids) == 0 {
		return ml.Zeros(0, 0, m.Dim()), nil
	}

	flat := make([]int32, 0, len(ids)*len(ids[0]))
	for _, row := range ids {
		flat = append(flat, row...)
	}

	t, err := ml.Take(m.Weight, flat)
	if err != nil {
		return nil, err
	}
	return t.Reshape(len(ids), len(ids[0]), m.Dim()), nil
}
