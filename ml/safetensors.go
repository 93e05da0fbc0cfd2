// safetensors.go - Lesen und Schreiben von Arrays im Safetensors-Format
//
// Dieses Modul enthaelt:
// - WriteSafetensors: Schreibt benannte Arrays in fester Reihenfolge
// - ReadSafetensors: Liest Header, Metadaten und Arrays
//
// Format: 8 Byte Header-Laenge (little-endian), JSON-Header, Rohdaten.
// Die Reihenfolge der Header-Eintraege entspricht der Schreibreihenfolge.
package ml

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const metadataKey = "__metadata__"

// ErrInvalidSafetensors wird fuer beschaedigte Dateien geliefert.
var ErrInvalidSafetensors = errors.New("ml: invalid safetensors file")

// NamedArray ist ein Array mit seinem Parameternamen.
type NamedArray struct {
	Name  string
	Array *Array
}

type tensorInfo struct {
	DType   string   `json:"dtype"`
	Shape   []int    `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// WriteSafetensors schreibt arrays im Typ dtype nach w.
func WriteSafetensors(w io.Writer, arrays []NamedArray, dtype DType, metadata map[string]string) error {
	header := orderedmap.New[string, any]()
	if len(metadata) > 0 {
		header.Set(metadataKey, metadata)
	}

	var data bytes.Buffer
	for _, na := range arrays {
		if _, ok := header.Get(na.Name); ok || na.Name == metadataKey {
			return fmt.Errorf("ml: duplicate tensor name %q", na.Name)
		}

		b, err := dtype.Encode(na.Array.Data())
		if err != nil {
			return err
		}

		begin := int64(data.Len())
		data.Write(b)
		header.Set(na.Name, tensorInfo{
			DType:   dtype.String(),
			Shape:   na.Array.Shape(),
			Offsets: [2]int64{begin, int64(data.Len())},
		})
	}

	bts, err := json.Marshal(header)
	if err != nil {
		return err
	}

	// Header auf 8 Byte ausrichten
	if pad := len(bts) % 8; pad != 0 {
		bts = append(bts, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(bts))); err != nil {
		return err
	}
	if _, err := w.Write(bts); err != nil {
		return err
	}
	_, err = data.WriteTo(w)
	return err
}

// Safetensors ist der Inhalt einer gelesenen Safetensors-Datei.
type Safetensors struct {
	Metadata map[string]string
	arrays   *orderedmap.OrderedMap[string, *Array]
}

// Names gibt die Array-Namen in Dateireihenfolge zurueck.
func (st *Safetensors) Names() []string {
	names := make([]string, 0, st.arrays.Len())
	for pair := st.arrays.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Get gibt das Array mit dem Namen name zurueck.
func (st *Safetensors) Get(name string) (*Array, bool) {
	return st.arrays.Get(name)
}

// Len gibt die Anzahl der Arrays zurueck.
func (st *Safetensors) Len() int {
	return st.arrays.Len()
}

// ReadSafetensors liest eine komplette Safetensors-Datei aus r.
func ReadSafetensors(r io.Reader) (*Safetensors, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSafetensors, err)
	}
	if n > 100<<20 {
		return nil, fmt.Errorf("%w: header too large (%d bytes)", ErrInvalidSafetensors, n)
	}

	bts := make([]byte, n)
	if _, err := io.ReadFull(r, bts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSafetensors, err)
	}

	header := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(bytes.TrimRight(bts, " "), header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSafetensors, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	st := &Safetensors{arrays: orderedmap.New[string, *Array]()}
	for pair := header.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == metadataKey {
			if err := json.Unmarshal(pair.Value, &st.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidSafetensors, err)
			}
			continue
		}

		var info tensorInfo
		if err := json.Unmarshal(pair.Value, &info); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSafetensors, pair.Key, err)
		}

		dtype, err := ParseDType(info.DType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}

		begin, end := info.Offsets[0], info.Offsets[1]
		if begin < 0 || end < begin || end > int64(len(data)) {
			return nil, fmt.Errorf("%w: %s: offsets %v out of range", ErrInvalidSafetensors, pair.Key, info.Offsets)
		}

		f32s, err := dtype.Decode(data[begin:end])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		if len(f32s) != mul(info.Shape...) {
			return nil, fmt.Errorf("%w: %s: shape %v does not match %d elements", ErrInvalidSafetensors, pair.Key, info.Shape, len(f32s))
		}

		st.arrays.Set(pair.Key, NewArray(f32s, info.Shape...))
	}

	return st, nil
}
