// types.go - Datentypen fuer die Serialisierung von Arrays
// Dieses Modul definiert DType und die Byte-Codecs fuer F32, F16 und BF16.
package ml

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType represents the on-disk data type of array elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}

// ParseDType liest einen DType aus seinem Safetensors-Namen (case-insensitive).
func ParseDType(s string) (DType, error) {
	switch strings.ToUpper(s) {
	case "F32", "FP32", "FLOAT32":
		return DTypeF32, nil
	case "F16", "FP16", "FLOAT16":
		return DTypeF16, nil
	case "BF16", "BFLOAT16":
		return DTypeBF16, nil
	default:
		return DTypeOther, fmt.Errorf("ml: unsupported dtype %q", s)
	}
}

// Size gibt die Anzahl Bytes pro Element zurueck.
func (t DType) Size() int {
	switch t {
	case DTypeF32:
		return 4
	case DTypeF16, DTypeBF16:
		return 2
	default:
		return 0
	}
}

// Encode kodiert float32-Werte little-endian im gegebenen Typ.
func (t DType) Encode(data []float32) ([]byte, error) {
	switch t {
	case DTypeF32:
		b := make([]byte, 4*len(data))
		for i, f := range data {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
		}
		return b, nil
	case DTypeF16:
		b := make([]byte, 2*len(data))
		for i, f := range data {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(f).Bits())
		}
		return b, nil
	case DTypeBF16:
		return bfloat16.EncodeFloat32(data), nil
	default:
		return nil, fmt.Errorf("ml: cannot encode dtype %s", t)
	}
}

// Decode dekodiert little-endian Bytes des gegebenen Typs zu float32.
func (t DType) Decode(b []byte) ([]float32, error) {
	if t.Size() == 0 || len(b)%t.Size() != 0 {
		return nil, fmt.Errorf("ml: cannot decode %d bytes as %s", len(b), t)
	}

	switch t {
	case DTypeF32:
		f32s := make([]float32, len(b)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return f32s, nil
	case DTypeF16:
		f32s := make([]float32, len(b)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
		return f32s, nil
	default:
		return bfloat16.DecodeFloat32(b), nil
	}
}
