// generate.go - Inkrementelles Sampling von Text- und Bild-Tokens
//
// Dieses Modul enthaelt:
// - GenerateOptions: VAE, optionaler Scorer, Maske und Sampling-Parameter
// - Generate: Vervollstaendigt den Prompt Token fuer Token bis zur vollen Laenge
// - Generation: Ergebnis mit Token-Sequenz, Bild-Indizes, Bildern und Scores
//
// Ablauf pro Schritt:
// 1. Sequenz an TextSeqLen in Text- und Bild-Praefix teilen
// 2. Forward, Logits der letzten Position
// 3. Threshold-Filter, Temperatur, kategorisches Ziehen
// 4. Bild-Ids werden um NumTextTokens verschoben angehaengt
package dalle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ollama/dalle/logutil"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/sample"
	"github.com/ollama/dalle/types/errtypes"
)

// Scorer bewertet Text-Bild-Paare, z.B. *clip.CLIP
type Scorer interface {
	Score(text [][]int32, image input.Image, mask [][]bool) ([]float32, error)
}

type GenerateOptions struct {
	// VAE dekodiert die erzeugten Bild-Tokens. nil: der angehaengte VAE.
	VAE *dvae.DiscreteVAE

	// CLIP bewertet die erzeugten Bilder gegen den Text, optional
	CLIP Scorer

	// Mask hat die Laenge des Prompts, true markiert sichtbare Positionen
	Mask [][]bool

	FilterThreshold float64
	Temperature     float64

	// Seed fuer das Sampling. nil: zufaellig
	Seed *uint64

	// Progress wird nach jedem Schritt aufgerufen
	Progress func(step, total int)
}

// DefaultGenerateOptions gibt die Standardwerte fuer Generate zurueck
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		FilterThreshold: 0.5,
		Temperature:     1,
	}
}

type Generation struct {
	// Tokens ist die volle Sequenz [B][SeqLen], Bild-Ids im Bild-Vokabular
	Tokens [][]int32

	// ImageTokens sind die letzten ImageSeqLen Eintraege von Tokens
	ImageTokens [][]int32

	// Images sind die dekodierten Bilder [B, C, H, W]
	Images *ml.Array

	// Scores ist nil ohne Scorer
	Scores []float32
}

// Generate vervollstaendigt text [B][n] mit 1 <= n <= TextSeqLen zu einer Sequenz
// der Laenge TextSeqLen+ImageSeqLen und dekodiert das Bildsegment.
// Das Modell laeuft dabei im Auswertungsmodus.
func (m *DALLE) Generate(ctx context.Context, text [][]int32, opts GenerateOptions) (*Generation, error) {
	const op = "dalle generate"

	vae := opts.VAE
	if vae == nil {
		vae = m.VAE
	}
	if vae == nil {
		return nil, errtypes.Precondition(op, "generation requires a VAE")
	}

	if err := m.checkText(op, text); err != nil {
		return nil, err
	}
	if err := checkMask(op, opts.Mask, len(text), len(text[0])); err != nil {
		return nil, err
	}

	if opts.FilterThreshold < 0 || opts.FilterThreshold > 1 {
		return nil, errtypes.Precondition(op, "filter threshold %v not in [0, 1]", opts.FilterThreshold)
	}
	if opts.Temperature <= 0 {
		return nil, errtypes.Precondition(op, "temperature must be positive, got %v", opts.Temperature)
	}

	src := ml.NewRandomSource()
	if opts.Seed != nil {
		src = ml.NewSource(*opts.Seed)
	}
	sampler := sample.Weighted(src.Src(), sample.Threshold(opts.FilterThreshold), sample.Temperature(opts.Temperature))

	defer model.Eval(m)()

	c := m.config
	seqLen := c.SeqLen()

	seq := make([][]int32, len(text))
	for i, row := range text {
		seq[i] = make([]int32, len(row), seqLen)
		copy(seq[i], row)
	}

	var mask [][]bool
	if opts.Mask != nil {
		mask = padMask(opts.Mask, 0)
	}

	start, total := len(text[0]), seqLen-len(text[0])
	slog.Debug("generating", "batch", len(seq), "prompt", start, "steps", total,
		"filter_threshold", opts.FilterThreshold, "temperature", opts.Temperature)

	began := time.Now()
	for cur := start; cur < seqLen; cur++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		textLen := min(cur, c.TextSeqLen)
		prefix := make([][]int32, len(seq))
		var image [][]int32
		if cur > c.TextSeqLen {
			image = make([][]int32, len(seq))
		}
		for i, row := range seq {
			prefix[i] = row[:textLen]
			if image != nil {
				image[i] = row[c.TextSeqLen:cur]
			}
		}

		logits, err := m.forward(prefix, image, mask)
		if err != nil {
			return nil, err
		}

		v := logits.Dim(2)
		data := logits.Data()
		for i := range seq {
			last := data[(i*cur+cur-1)*v : (i*cur+cur)*v]
			id, err := sampler.Sample(last)
			if err != nil {
				return nil, fmt.Errorf("%s: step %d: %w", op, cur, err)
			}

			if cur >= c.TextSeqLen {
				id -= c.NumTextTokens
				if id < 0 || id >= c.NumImageTokens {
					return nil, fmt.Errorf("%s: step %d: sampled id %d outside the image vocabulary", op, cur, id)
				}
			}
			seq[i] = append(seq[i], int32(id))
		}

		if mask != nil && cur+1 <= c.TextSeqLen {
			for i := range mask {
				mask[i] = append(mask[i], true)
			}
		}

		logutil.Trace("generated token", "step", cur-start+1, "position", cur)
		if opts.Progress != nil {
			opts.Progress(cur-start+1, total)
		}
	}

	g := &Generation{Tokens: seq, ImageTokens: make([][]int32, len(seq))}
	for i, row := range seq {
		g.ImageTokens[i] = row[c.TextSeqLen:]
	}

	images, err := vae.Decode(g.ImageTokens)
	if err != nil {
		return nil, err
	}
	g.Images = images

	if opts.CLIP != nil {
		textSeg := make([][]int32, len(seq))
		for i, row := range seq {
			textSeg[i] = row[:c.TextSeqLen]
		}

		if g.Scores, err = opts.CLIP.Score(textSeg, input.RawImage{Pixels: images}, mask); err != nil {
			return nil, fmt.Errorf("%s: score: %w", op, err)
		}
	}

	slog.Debug("generated", "batch", len(seq), "steps", total, "duration", time.Since(began))
	return g, nil
}
