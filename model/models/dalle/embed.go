// embed.go - Gemeinsame Einbettung von Text- und Bild-Tokens
//
// Dieses Modul enthaelt:
// - resolveImage: Wandelt ein Bild-Argument in Codebook-Indizes um
// - checkText/checkMask: Validierung der Eingaben
// - embed: Text- und Bild-Einbettung plus Positionen, Maske wird verlaengert
package dalle

import (
	"fmt"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/types/errtypes"
)

func (m *DALLE) checkText(op string, text [][]int32) error {
	if len(text) == 0 {
		return errtypes.Precondition(op, "text batch is empty")
	}

	n := len(text[0])
	for i, row := range text {
		if len(row) != n {
			return errtypes.Shape(op, []int{len(text), n}, "text row %d has length %d", i, len(row))
		}
	}
	if n < 1 || n > m.config.TextSeqLen {
		return errtypes.Shape(op, []int{len(text), n}, "text length must be in [1, %d]", m.config.TextSeqLen)
	}
	return nil
}

func checkMask(op string, mask [][]bool, batch, length int) error {
	if mask == nil {
		return nil
	}
	if len(mask) != batch {
		return errtypes.Shape(op, []int{len(mask)}, "mask has %d rows for batch %d", len(mask), batch)
	}
	for i, row := range mask {
		if len(row) != length {
			return errtypes.Shape(op, []int{batch, len(row)}, "mask row %d has length %d, want %d", i, len(row), length)
		}
	}
	return nil
}

// resolveImage gibt die Bild-Indizes [B][N] zurueck oder nil, wenn kein Bild vorliegt.
// Roh-Bilder werden ueber den angehaengten VAE tokenisiert.
func (m *DALLE) resolveImage(op string, img input.Image, batch int) ([][]int32, error) {
	var ids [][]int32
	switch img := img.(type) {
	case nil:
		return nil, nil
	case input.RawImage:
		if m.VAE == nil {
			return nil, errtypes.Precondition(op, "raw image input requires a VAE")
		}

		var err error
		if ids, err = m.VAE.Encode(img.Pixels); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case input.ImageTokens:
		if len(img.IDs) == 0 {
			return nil, nil
		}
		ids = img.IDs
	default:
		return nil, errtypes.Precondition(op, "unsupported image input %T", img)
	}

	if len(ids) != batch {
		return nil, errtypes.Shape(op, []int{len(ids)}, "image batch %d does not match text batch %d", len(ids), batch)
	}

	n := len(ids[0])
	for i, row := range ids {
		if len(row) != n {
			return nil, errtypes.Shape(op, []int{len(ids), n}, "image row %d has length %d", i, len(row))
		}
	}
	if n > m.config.ImageSeqLen {
		return nil, errtypes.Shape(op, []int{len(ids), n}, "image length exceeds %d", m.config.ImageSeqLen)
	}
	if n == 0 {
		return nil, nil
	}
	return ids, nil
}

// embed baut die gemeinsame Sequenz [B, Lt+Li, D]. Eine vorhandene Maske wird
// um sichtbare Positionen fuer das Bildsegment verlaengert.
func (m *DALLE) embed(text, image [][]int32, mask [][]bool) (*ml.Array, [][]bool, error) {
	tokens, err := m.TextEmb.Forward(text)
	if err != nil {
		return nil, nil, fmt.Errorf("text embedding: %w", err)
	}
	tokens = ml.Add(tokens, ml.Slice(m.TextPosEmb.Weight, 0, 0, len(text[0])))

	if image == nil {
		return tokens, mask, nil
	}

	imageEmb, err := m.ImageEmb.Forward(image)
	if err != nil {
		return nil, nil, fmt.Errorf("image embedding: %w", err)
	}
	imageEmb = ml.Add(imageEmb, ml.Slice(m.ImagePosEmb.Weight, 0, 0, len(image[0])))

	if mask != nil {
		mask = padMask(mask, len(image[0]))
	}
	return ml.Concat(1, tokens, imageEmb), mask, nil
}

// padMask gibt eine Kopie von mask zurueck, rechts um n sichtbare Positionen verlaengert
func padMask(mask [][]bool, n int) [][]bool {
	out := make([][]bool, len(mask))
	for i, row := range mask {
		out[i] = make([]bool, len(row), len(row)+n)
		copy(out[i], row)
		for range n {
			out[i] = append(out[i], true)
		}
	}
	return out
}
