// names.go - Umbenennung von Checkpoint-Schluesseln
//
// nn.Sequential-Container nummerieren Conv und ReLU gemeinsam: der VAE-Encoder
// mit N Schichten hat Gewichte unter encoder.0, encoder.2, ..., encoder.2N,
// wobei encoder.2N die 1x1-Ausgabe-Convolution ist. Der Decoder analog.
// Alle anderen Namen werden ueber die alt-Tags der Modelle gefunden.
package convert

import (
	"regexp"
	"strconv"
)

var sequentialRe = regexp.MustCompile(`^((?:.*\.)?)(encoder|decoder)\.(\d+)\.(weight|bias)$`)

// renamer bildet Checkpoint-Namen auf die Parameter-Namen dieses Baums ab
type renamer struct {
	numLayers int
}

func (r renamer) rename(name string) string {
	m := sequentialRe.FindStringSubmatch(name)
	if m == nil || r.numLayers == 0 {
		return name
	}

	prefix, block, suffix := m[1], m[2], m[4]
	i, _ := strconv.Atoi(m[3])
	switch {
	case i == 2*r.numLayers:
		return prefix + block + "_out." + suffix
	case i%2 == 0 && i < 2*r.numLayers:
		return prefix + block + "." + strconv.Itoa(i/2) + "." + suffix
	default:
		return name
	}
}
