// name_validation.go - Gueltigkeit von Namen und Abbildung auf Dateipfade
package model

import (
	"path/filepath"
	"strings"
)

const maxPartLen = 80

// validPart prueft einen Namensteil: 1 bis 80 Zeichen aus [A-Za-z0-9_-.],
// beginnend mit Buchstabe, Ziffer oder '_'. Namespaces duerfen keinen '.' enthalten.
func validPart(s string, allowDot bool) bool {
	if len(s) == 0 || len(s) > maxPartLen {
		return false
	}

	for i, c := range []byte(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case i == 0:
			return false
		case c == '-':
		case c == '.' && allowDot:
		default:
			return false
		}
	}
	return true
}

// IsValid meldet, ob alle drei Teile vorhanden und gueltig sind
func (n Name) IsValid() bool {
	return validPart(n.Namespace, false) && validPart(n.Model, true) && validPart(n.Tag, true)
}

// Filepath gibt {namespace}/{model}/{tag}.safetensors relativ zum
// Modell-Verzeichnis zurueck. Fuer ungueltige Namen gibt es eine panic.
func (n Name) Filepath() string {
	if !n.IsValid() {
		panic("model: filepath of invalid name " + n.String())
	}
	return filepath.Join(n.Namespace, n.Model, n.Tag+Extension)
}

// ParseNameFromFilepath ist die Umkehrung von [Name.Filepath]. Fuer Pfade,
// die keinem gueltigen Namen entsprechen, wird der leere Name zurueckgegeben.
func ParseNameFromFilepath(s string) Name {
	parts := strings.Split(filepath.Clean(s), string(filepath.Separator))
	if len(parts) != 3 {
		return Name{}
	}

	tag, ok := strings.CutSuffix(parts[2], Extension)
	if !ok {
		return Name{}
	}

	n := Name{Namespace: parts[0], Model: parts[1], Tag: tag}
	if !n.IsValid() {
		return Name{}
	}
	return n
}
