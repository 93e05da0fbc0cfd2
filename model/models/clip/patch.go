package clip

import (
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/types/errtypes"
)

// ============================================================================
// Patch - Zerlegung von Bildern in abgeflachte Patches
// ============================================================================
//
// [B, C, H, W] -> [B, (H/p)*(W/p), p*p*C], Patches row-major,
// innerhalb eines Patches (Zeile, Spalte, Kanal).

func (m *CLIP) patchify(img *ml.Array) (*ml.Array, error) {
	c := m.config
	if img.NDim() != 4 || img.Dim(1) != c.Channels || img.Dim(2) != c.VisualImageSize || img.Dim(3) != c.VisualImageSize {
		return nil, errtypes.Shape("clip patchify", img.Shape(), "expected [batch, %d, %d, %d]", c.Channels, c.VisualImageSize, c.VisualImageSize)
	}

	b, p := img.Dim(0), c.VisualPatchSize
	n := c.VisualImageSize / p

	x := img.Reshape(b, c.Channels, n, p, n, p)
	x = ml.Transpose(x, 0, 2, 4, 3, 5, 1)
	return x.Reshape(b, n*n, c.PatchDim()), nil
}
