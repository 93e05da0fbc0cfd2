// cmd_generate.go - Generate und Score Commands
// Hauptfunktionen: GenerateHandler, ScoreHandler, writeSamples
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/progress"
)

// promptArg - Liest die Prompt-Tokens aus dem Argument oder von stdin
func promptArg(args []string, i int) ([]int32, error) {
	if len(args) > i {
		return parseTokens(args[i])
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("no prompt tokens given")
	}

	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return parseTokens(string(in))
}

// keepAliveFlag - Liest --keepalive als Dauer, nil wenn nicht gesetzt
func keepAliveFlag(cmd *cobra.Command) (*api.Duration, error) {
	s, err := cmd.Flags().GetString("keepalive")
	if err != nil || s == "" {
		return nil, err
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return &api.Duration{Duration: d}, nil
}

// sampleOptions - Uebernimmt nur explizit gesetzte Sampling-Flags
func sampleOptions(cmd *cobra.Command) (map[string]any, error) {
	opts := make(map[string]any)
	if cmd.Flags().Changed("threshold") {
		v, err := cmd.Flags().GetFloat64("threshold")
		if err != nil {
			return nil, err
		}
		opts["filter_threshold"] = v
	}

	if cmd.Flags().Changed("temperature") {
		v, err := cmd.Flags().GetFloat64("temperature")
		if err != nil {
			return nil, err
		}
		opts["temperature"] = v
	}

	if cmd.Flags().Changed("seed") {
		v, err := cmd.Flags().GetInt("seed")
		if err != nil {
			return nil, err
		}
		opts["seed"] = v
	}
	return opts, nil
}

// GenerateHandler - Erzeugt Bilder fuer einen Prompt und speichert sie als PNG
func GenerateHandler(cmd *cobra.Command, args []string) error {
	prompt, err := promptArg(args, 1)
	if err != nil {
		return err
	}

	maskFlag, _ := cmd.Flags().GetString("mask")
	mask, err := parseMask(maskFlag)
	if err != nil {
		return err
	}

	keepAlive, err := keepAliveFlag(cmd)
	if err != nil {
		return err
	}

	opts, err := sampleOptions(cmd)
	if err != nil {
		return err
	}

	clipModel, _ := cmd.Flags().GetString("clip")
	samples, _ := cmd.Flags().GetInt("samples")
	output, _ := cmd.Flags().GetString("output")
	verbose, _ := cmd.Flags().GetBool("verbose")

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	p := progress.NewProgress(os.Stderr)
	defer p.StopAndClear()

	spinner := progress.NewSpinner("loading")
	p.Add(spinner)

	var bar *progress.Bar
	var final api.GenerateResponse
	req := &api.GenerateRequest{
		Model:     args[0],
		Prompt:    prompt,
		Mask:      mask,
		Clip:      clipModel,
		Samples:   samples,
		KeepAlive: keepAlive,
		Options:   opts,
	}

	fn := func(resp api.GenerateResponse) error {
		if resp.Total > 0 {
			if bar == nil {
				spinner.Stop()
				bar = progress.NewBar("generating", int64(resp.Total))
				p.Add(bar)
			}
			bar.Set(int64(resp.Completed))
		}

		if resp.Done {
			final = resp
		}
		return nil
	}

	if err := client.Generate(cmd.Context(), req, fn); err != nil {
		return err
	}
	p.StopAndClear()

	paths, err := writeSamples(output, final.Samples)
	if err != nil {
		return err
	}

	for i, path := range paths {
		if s := final.Samples[i].Score; s != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\n", path, *s)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
	}

	if verbose {
		final.Summary()
	}
	return nil
}

// writeSamples - Schreibt die PNG-Bilder nach dir, in Reihenfolge der Antwort
func writeSamples(dir string, samples []api.Sample) ([]string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	prefix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	paths := make([]string, len(samples))
	for i, s := range samples {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%s-%d.png", prefix, i))
		if err := os.WriteFile(paths[i], s.Image, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// ScoreHandler - Bewertet Bilder oder Bild-Tokens gegen einen Prompt
func ScoreHandler(cmd *cobra.Command, args []string) error {
	prompt, err := promptArg(args, 1)
	if err != nil {
		return err
	}

	maskFlag, _ := cmd.Flags().GetString("mask")
	mask, err := parseMask(maskFlag)
	if err != nil {
		return err
	}

	keepAlive, err := keepAliveFlag(cmd)
	if err != nil {
		return err
	}

	imagePaths, _ := cmd.Flags().GetStringArray("image")
	tokenFlags, _ := cmd.Flags().GetStringArray("image-tokens")

	req := &api.ScoreRequest{Model: args[0], KeepAlive: keepAlive}
	var labels []string
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		req.Images = append(req.Images, data)
		labels = append(labels, path)
	}

	for i, s := range tokenFlags {
		tokens, err := parseTokens(s)
		if err != nil {
			return fmt.Errorf("image tokens %d: %w", i, err)
		}
		req.ImageTokens = append(req.ImageTokens, tokens)
		labels = append(labels, fmt.Sprintf("tokens[%d]", i))
	}

	if len(labels) == 0 {
		return errors.New("at least one --image or --image-tokens is required")
	}

	for range labels {
		req.Prompts = append(req.Prompts, prompt)
		if mask != nil {
			req.Masks = append(req.Masks, mask)
		}
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Score(cmd.Context(), req)
	if err != nil {
		return err
	}

	for i, score := range resp.Scores {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\n", labels[i], score)
	}
	return nil
}

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:     "generate MODEL [TOKENS]",
		Short:   "Generate images from prompt tokens",
		Args:    cobra.RangeArgs(1, 2),
		PreRunE: checkServerHeartbeat,
		RunE:    GenerateHandler,
	}

	generateCmd.Flags().String("mask", "", "Prompt mask, e.g. 1,1,0")
	generateCmd.Flags().String("clip", "", "Clip model used to rank the samples")
	generateCmd.Flags().IntP("samples", "n", 1, "Number of images to generate")
	generateCmd.Flags().StringP("output", "o", "", "Output directory for the PNG files")
	generateCmd.Flags().Int("seed", -1, "Sampling seed (-1 for random)")
	generateCmd.Flags().Float64("temperature", 1, "Sampling temperature")
	generateCmd.Flags().Float64("threshold", 0.5, "Top-k filter threshold")
	generateCmd.Flags().String("keepalive", "", "Duration to keep a model loaded (e.g. 5m)")
	generateCmd.Flags().Bool("verbose", false, "Show timings for the generation")

	return generateCmd
}

// newScoreCmd - Erstellt den score Command
func newScoreCmd() *cobra.Command {
	scoreCmd := &cobra.Command{
		Use:     "score MODEL [TOKENS]",
		Short:   "Score images against prompt tokens with a clip model",
		Args:    cobra.RangeArgs(1, 2),
		PreRunE: checkServerHeartbeat,
		RunE:    ScoreHandler,
	}

	scoreCmd.Flags().String("mask", "", "Prompt mask, e.g. 1,1,0")
	scoreCmd.Flags().StringArray("image", nil, "Image file to score (repeatable)")
	scoreCmd.Flags().StringArray("image-tokens", nil, "Image token ids to score (repeatable)")
	scoreCmd.Flags().String("keepalive", "", "Duration to keep a model loaded (e.g. 5m)")

	return scoreCmd
}
