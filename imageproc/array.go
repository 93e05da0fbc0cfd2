// MODUL: array
// ZWECK: Umwandlung zwischen Bildern und Pixel-Arrays [B, C, H, W]
// INPUT: image.Image bzw. ml.Array mit Werten in [0, 1]
// OUTPUT: ml.Array im CHW-Layout, *image.RGBA, PNG-Bytes
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml, image/png
// HINWEISE: Kanaele 1 (Graustufen) und 3 (RGB), Werte werden auf [0, 1] begrenzt

package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/ollama/dalle/ml"
)

// ToArray wandelt Bilder gleicher Groesse in ein Array [B, channels, H, W] um
func ToArray(channels int, imgs ...image.Image) (*ml.Array, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("imageproc: no images")
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("imageproc: unsupported channel count %d", channels)
	}

	bounds := imgs[0].Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	plane := h * w
	out := ml.Zeros(len(imgs), channels, h, w)
	data := out.Data()

	for n, img := range imgs {
		b := img.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, fmt.Errorf("imageproc: image %d is %dx%d, want %dx%d", n, b.Dx(), b.Dy(), w, h)
		}

		base := n * channels * plane
		for y := range h {
			for x := range w {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				idx := y*w + x
				if channels == 1 {
					data[base+idx] = (float32(r) + float32(g) + float32(bl)) / (3 * 0xffff)
					continue
				}
				data[base+idx] = float32(r) / 0xffff
				data[base+plane+idx] = float32(g) / 0xffff
				data[base+2*plane+idx] = float32(bl) / 0xffff
			}
		}
	}
	return out, nil
}

func clamp(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// FromArray wandelt Bild i aus a [B, C, H, W] in ein RGBA-Bild um
func FromArray(a *ml.Array, i int) (*image.RGBA, error) {
	if a.NDim() != 4 || (a.Dim(1) != 1 && a.Dim(1) != 3) {
		return nil, fmt.Errorf("imageproc: expected [batch, 1|3, height, width], got %v", a.Shape())
	}
	if i < 0 || i >= a.Dim(0) {
		return nil, fmt.Errorf("imageproc: image %d not in batch of %d", i, a.Dim(0))
	}

	c, h, w := a.Dim(1), a.Dim(2), a.Dim(3)
	plane := h * w
	data := a.Data()[i*c*plane : (i+1)*c*plane]

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			idx := y*w + x
			r := clamp(data[idx])
			g, b := r, r
			if c == 3 {
				g, b = clamp(data[plane+idx]), clamp(data[2*plane+idx])
			}
			img.SetRGBA(x, y, color.RGBA{r, g, b, 0xff})
		}
	}
	return img, nil
}

// EncodePNG schreibt Bild i aus a als PNG nach w
func EncodePNG(w io.Writer, a *ml.Array, i int) error {
	img, err := FromArray(a, i)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// PNGs gibt alle Bilder aus a als PNG-Bytes zurueck
func PNGs(a *ml.Array) ([][]byte, error) {
	if a.NDim() == 0 {
		return nil, fmt.Errorf("imageproc: empty array")
	}

	out := make([][]byte, a.Dim(0))
	for i := range out {
		var buf bytes.Buffer
		if err := EncodePNG(&buf, a, i); err != nil {
			return nil, err
		}
		out[i] = buf.Bytes()
	}
	return out, nil
}
