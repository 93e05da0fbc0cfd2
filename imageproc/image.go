// MODUL: image
// ZWECK: Laden und Zuschneiden von Bildern auf die quadratische Modell-Aufloesung
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: *image.RGBA in Zielgroesse
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei Load
// ABHAENGIGKEITEN: golang.org/x/image/draw, golang.org/x/image/webp, image/jpeg, image/png
// HINWEISE: Fit schneidet zentriert quadratisch zu und skaliert bilinear

package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Load liest und dekodiert ein Bild von path
func Load(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// Decode liest ein Bild vollstaendig aus r
func Decode(r io.Reader) (*image.RGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// DecodeBytes dekodiert JPEG, PNG oder WebP
func DecodeBytes(data []byte) (*image.RGBA, error) {
	if DetectFormat(data) == FormatUnknown {
		return nil, ErrUnknownFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageproc: decode: %w", err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// CenterCrop schneidet das groesste zentrierte Quadrat aus img
func CenterCrop(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	offset := image.Pt((bounds.Dx()-side)/2, (bounds.Dy()-side)/2)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min.Add(offset), draw.Src)
	return dst
}

// Resize skaliert img bilinear auf size x size
func Resize(img image.Image, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("imageproc: invalid size %d", size)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// Fit schneidet img quadratisch zu und skaliert auf size x size
func Fit(img image.Image, size int) (*image.RGBA, error) {
	sq := CenterCrop(img)
	if sq.Bounds().Dx() == size {
		return sq, nil
	}
	return Resize(sq, size)
}
