// MODUL: formats
// ZWECK: Erkennung der Eingabe-Bildformate anhand der Magic-Bytes
// INPUT: Bild-Bytes
// OUTPUT: Format, Fehler bei unbekannten Formaten
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: JPEG, PNG und WebP werden gelesen, geschrieben wird nur PNG

package imageproc

import (
	"bytes"
	"errors"
)

// Format ist ein unterstuetztes Eingabeformat
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicRIFF = []byte("RIFF")
	magicWebP = []byte("WEBP")
)

// ErrUnknownFormat wird fuer nicht erkannte Bild-Bytes geliefert
var ErrUnknownFormat = errors.New("imageproc: unknown image format")

// DetectFormat erkennt das Format anhand der ersten Bytes
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG
	case len(data) >= 12 && bytes.HasPrefix(data, magicRIFF) && bytes.Equal(data[8:12], magicWebP):
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// MimeType gibt den MIME-Type des Formats zurueck
func (f Format) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func (f Format) String() string {
	return string(f)
}
