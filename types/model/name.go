// Package model - Modell-Namen der lokalen Modell-Ablage
//
// Ein Name hat die Form [namespace/]model[:tag]. Fehlende Teile werden mit
// "library" und "latest" aufgefuellt. Jeder Name entspricht genau einer
// Datei {namespace}/{model}/{tag}.safetensors unterhalb von DALLE_MODELS.
package model

import (
	"cmp"
	"log/slog"
	"strings"
)

// MissingPart markiert einen Teil, der durch ein Trennzeichen angekuendigt
// wurde, aber leer ist. Solche Namen sind nie gueltig.
const MissingPart = "!MISSING!"

const (
	defaultNamespace = "library"
	defaultTag       = "latest"

	// Extension ist die Dateiendung gespeicherter Modelle
	Extension = ".safetensors"
)

// Name ist ein geparster Modell-Name. Ob er gueltig ist, prueft [Name.IsValid].
type Name struct {
	Namespace string
	Model     string
	Tag       string
}

// ParseName zerlegt s in Namespace, Modell und Tag:
//
//	me/dalle:tiny  ->  me, dalle, tiny
//	dalle          ->  library, dalle, latest
//
// Das Tag folgt dem letzten ':' nach dem letzten '/'.
func ParseName(s string) Name {
	n := Name{Namespace: defaultNamespace, Tag: defaultTag}

	if colon := strings.LastIndex(s, ":"); colon > strings.LastIndex(s, "/") {
		n.Tag = cmp.Or(s[colon+1:], MissingPart)
		s = s[:colon]
	}

	if slash := strings.LastIndex(s, "/"); slash >= 0 {
		n.Namespace = cmp.Or(s[:slash], MissingPart)
		s = cmp.Or(s[slash+1:], MissingPart)
	}

	n.Model = s
	return n
}

// String gibt den vollstaendigen Namen zurueck, den ParseName wieder liest
func (n Name) String() string {
	return n.Namespace + "/" + n.Model + ":" + n.Tag
}

// DisplayShortest laesst den Standard-Namespace weg, das Tag bleibt immer sichtbar
func (n Name) DisplayShortest() string {
	if strings.EqualFold(n.Namespace, defaultNamespace) {
		return n.Model + ":" + n.Tag
	}
	return n.String()
}

func (n Name) LogValue() slog.Value {
	return slog.StringValue(n.DisplayShortest())
}

// EqualFold vergleicht zwei Namen ohne Beachtung der Gross-/Kleinschreibung
func (n Name) EqualFold(o Name) bool {
	return strings.EqualFold(n.Namespace, o.Namespace) &&
		strings.EqualFold(n.Model, o.Model) &&
		strings.EqualFold(n.Tag, o.Tag)
}
