// Package input - Eingabe-Varianten fuer Bild-Argumente
//
// Ein Bild-Argument ist entweder ein Roh-Bild (Pixel) oder eine bereits
// tokenisierte Index-Sequenz. nil steht fuer "kein Bild".
// Image ist versiegelt: nur die Typen dieses Pakets implementieren es.
package input

import "github.com/ollama/dalle/ml"

// Image ist ein Bild-Argument: RawImage oder ImageTokens
type Image interface {
	isImage()
}

// RawImage enthaelt Pixel [B, C, H, W] im Bereich [0, 1]
type RawImage struct {
	Pixels *ml.Array
}

// ImageTokens enthaelt Codebook-Indizes [B][N] im Bild-Vokabular
type ImageTokens struct {
	IDs [][]int32
}

func (RawImage) isImage()    {}
func (ImageTokens) isImage() {}

// Batch gibt die Batch-Groesse des Bildes zurueck, 0 fuer nil
func Batch(img Image) int {
	switch img := img.(type) {
	case RawImage:
		if img.Pixels == nil || img.Pixels.NDim() == 0 {
			return 0
		}
		return img.Pixels.Dim(0)
	case ImageTokens:
		return len(img.IDs)
	default:
		return 0
	}
}
