// Package model - Reflection-basierte Parameter-Verwaltung
//
// Dieses Modul enthaelt die Reflection-Logik, mit der Modell-Strukturen
// ueber ihre `param`-Tags durchlaufen werden.
//
// Hauptkomponenten:
// - Parameters: Liefert alle benannten Parameter in Deklarationsreihenfolge
// - Populate: Kopiert geladene Arrays in-place in die Modell-Parameter
// - Tag: Parameter-Tag mit Namen und Alternativen
// - parseTag: Parst Tags der Form `param:"name,alt:other"`
//
// Parameter, die ueber mehrere Pfade erreichbar sind (geteiltes Codebook),
// werden nur einmal unter ihrem ersten Namen gefuehrt.

package model

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/ollama/dalle/logutil"
	"github.com/ollama/dalle/ml"
)

// Tag repraesentiert einen geparsten Parameter-Tag
type Tag struct {
	name         string
	alternatives []string
}

// parseTag parst einen Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	tag.name = parts[0]
	for _, part := range parts[1:] {
		if value, ok := strings.CutPrefix(part, "alt:"); ok {
			tag.alternatives = append(tag.alternatives, value)
		}
	}
	return
}

var arrayType = reflect.TypeOf((*ml.Array)(nil))

// param ist ein Parameter mit allen Namen, unter denen er gefunden werden kann.
// names[0] ist der kanonische Name.
type param struct {
	names []string
	array *ml.Array
}

// walk durchlaeuft v rekursiv und ruft fn fuer jedes *ml.Array-Feld auf.
func walk(v reflect.Value, tags []Tag, fn func([]Tag, *ml.Array)) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			walk(v.Elem(), tags, fn)
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		if v.Type() == arrayType {
			fn(tags, v.Interface().(*ml.Array))
			return
		}
		walk(v.Elem(), tags, fn)
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			tagsCopy := tags
			if tag := f.Tag.Get("param"); tag == "-" {
				continue
			} else if tag != "" {
				tagsCopy = append(slices.Clip(tags), parseTag(tag))
			}
			walk(v.Field(i), tagsCopy, fn)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			walk(v.Index(i), append(slices.Clip(tags), Tag{name: strconv.Itoa(i)}), fn)
		}
	}
}

// buildNames baut alle vollstaendigen Namen aus Tags, der erste ist kanonisch
func buildNames(tags []Tag) []string {
	names := []string{""}
	for _, tag := range tags {
		if tag.name == "" {
			continue
		}

		var next []string
		for _, prefix := range names {
			for _, n := range append([]string{tag.name}, tag.alternatives...) {
				if prefix != "" {
					n = prefix + "." + n
				}
				next = append(next, n)
			}
		}
		names = next
	}
	return names
}

func params(m any) []param {
	var ps []param
	seen := make(map[*ml.Array]int)
	walk(reflect.ValueOf(m), nil, func(tags []Tag, a *ml.Array) {
		names := buildNames(tags)
		if i, ok := seen[a]; ok {
			ps[i].names = append(ps[i].names, names...)
			return
		}
		seen[a] = len(ps)
		ps = append(ps, param{names: names, array: a})
	})
	return ps
}

// Parameters gibt alle Parameter von m unter ihrem kanonischen Namen zurueck
func Parameters(m any) []ml.NamedArray {
	ps := params(m)
	out := make([]ml.NamedArray, len(ps))
	for i, p := range ps {
		out[i] = ml.NamedArray{Name: p.names[0], Array: p.array}
	}
	return out
}

// Names gibt alle Namen zurueck, unter denen Parameter von m gefunden werden,
// inklusive Alternativen und Aliasen geteilter Parameter
func Names(m any) []string {
	var names []string
	for _, p := range params(m) {
		names = append(names, p.names...)
	}
	return names
}

// CountParameters gibt die Anzahl der Elemente aller Parameter zurueck
func CountParameters(m any) int {
	var n int
	for _, p := range params(m) {
		n += p.array.Size()
	}
	return n
}

// ArraySource liefert Arrays ueber ihren Namen, z.B. *ml.Safetensors
type ArraySource interface {
	Get(name string) (*ml.Array, bool)
}

// Arrays ist eine einfache ArraySource ueber eine Map
type Arrays map[string]*ml.Array

func (a Arrays) Get(name string) (*ml.Array, bool) {
	arr, ok := a[name]
	return arr, ok
}

// MissingError listet Parameter, die in der Quelle fehlen
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing parameters: %s", strings.Join(e.Names, ", "))
}

type populateOptions struct {
	allowMissing bool
}

// PopulateOption konfiguriert Populate
type PopulateOption func(*populateOptions)

// AllowMissing laesst fehlende Parameter unveraendert statt einen Fehler zu liefern
func AllowMissing() PopulateOption {
	return func(o *populateOptions) { o.allowMissing = true }
}

// Populate kopiert fuer jeden Parameter von m das gleichnamige Array aus src.
// Die Daten werden in-place kopiert, geteilte Parameter bleiben geteilt.
// Zurueckgegeben werden die Namen der geladenen Parameter.
func Populate(m any, src ArraySource, opts ...PopulateOption) ([]string, error) {
	var o populateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var loaded, missing []string
	for _, p := range params(m) {
		found := false
		for _, name := range p.names {
			a, ok := src.Get(name)
			if !ok {
				continue
			}
			if !slices.Equal(a.Shape(), p.array.Shape()) {
				return nil, fmt.Errorf("parameter %s: shape %v does not match %v", name, a.Shape(), p.array.Shape())
			}

			logutil.Trace("found parameter", "name", name, "shape", a.Shape())
			p.array.Set(a.Data())
			loaded = append(loaded, name)
			found = true
			break
		}

		if !found {
			missing = append(missing, p.names[0])
		}
	}

	if len(missing) > 0 && !o.allowMissing {
		return nil, &MissingError{Names: missing}
	}
	return loaded, nil
}
