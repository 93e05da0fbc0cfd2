// dump.go - Lesbare Ausgabe von Arrays fuer Debugging und Tests
package ml

import (
	"math"
	"strconv"
	"strings"
)

const (
	dumpThreshold = 1000
	dumpEdgeItems = 3
)

// Dump formatiert a mit precision Nachkommastellen. Bei mehr als 1000
// Elementen werden je Dimension nur die ersten und letzten drei Eintraege
// ausgegeben. Maskierte Logits erscheinen als -inf.
func Dump(a *Array, precision int) string {
	if a.NDim() == 0 {
		return formatElem(a.data[0], precision)
	}

	edge := a.Size()
	if edge > dumpThreshold {
		edge = dumpEdgeItems
	}

	var sb strings.Builder
	dumpDim(&sb, a.data, a.shape, 0, edge, precision)
	return sb.String()
}

func formatElem(f float32, precision int) string {
	switch {
	case math.IsInf(float64(f), -1), f == MaxNeg:
		return "-inf"
	case math.IsInf(float64(f), 1):
		return "inf"
	}
	return strconv.FormatFloat(float64(f), 'f', precision, 32)
}

func dumpDim(sb *strings.Builder, data []float32, shape []int, depth, edge, precision int) {
	n := shape[0]
	inner := 1
	for _, d := range shape[1:] {
		inner *= d
	}

	// Zeilen hoeherer Dimensionen werden durch Leerzeilen getrennt
	sep := "," + strings.Repeat("\n", len(shape)-1) + strings.Repeat(" ", depth+1)

	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i == edge && n > 2*edge {
			if len(shape) > 1 {
				sb.WriteString("..." + sep)
			} else {
				sb.WriteString("..., ")
			}
			i = n - edge - 1
			continue
		}

		if len(shape) > 1 {
			dumpDim(sb, data[i*inner:(i+1)*inner], shape[1:], depth+1, edge, precision)
			if i < n-1 {
				sb.WriteString(sep)
			}
			continue
		}

		text := formatElem(data[i], precision)
		if !strings.HasPrefix(text, "-") {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
		if i < n-1 {
			sb.WriteString(", ")
		}
	}
	sb.WriteByte(']')
}
