// cmd_model_create.go - Create und Convert Commands
// Hauptfunktionen: CreateHandler, ConvertHandler, saveModel
//
// Beide Commands schreiben direkt in das lokale Model-Verzeichnis
// ($DALLE_MODELS), ein laufender Server ist nicht noetig.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollama/dalle/convert"
	"github.com/ollama/dalle/format"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	_ "github.com/ollama/dalle/model/models"
	"github.com/ollama/dalle/progress"
	"github.com/ollama/dalle/server"
)

// modelConfig - Liest Architektur und Konfiguration aus den Flags
func modelConfig(cmd *cobra.Command) (string, []byte, error) {
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return "", nil, err
	}

	overrides, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return "", nil, err
	}

	arch, config, err := readConfig(file, overrides)
	if err != nil {
		return "", nil, err
	}

	if flag, _ := cmd.Flags().GetString("arch"); flag != "" {
		arch = flag
	}

	if arch == "" {
		return "", nil, fmt.Errorf("no architecture given, use --arch or set 'architecture' in the config (one of %v)", model.Architectures())
	}
	return arch, config, nil
}

// saveModel - Speichert m unter name im Model-Verzeichnis
func saveModel(cmd *cobra.Command, name string, m model.Model) error {
	dtypeFlag, err := cmd.Flags().GetString("dtype")
	if err != nil {
		return err
	}

	dtype, err := ml.ParseDType(dtypeFlag)
	if err != nil {
		return err
	}

	n, path, err := server.ModelPath(name)
	if err != nil {
		return err
	}

	p := progress.NewProgress(os.Stderr)
	spinner := progress.NewSpinner(fmt.Sprintf("writing %s", n.DisplayShortest()))
	p.Add(spinner)

	err = model.Save(path, m, dtype)
	p.StopAndClear()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created '%s' (%s, %s parameters)\n", n.DisplayShortest(), m.Architecture(), format.HumanNumber(uint64(model.CountParameters(m))))
	return nil
}

// CreateHandler - Erstellt ein zufaellig initialisiertes Modell
func CreateHandler(cmd *cobra.Command, args []string) error {
	arch, config, err := modelConfig(cmd)
	if err != nil {
		return err
	}

	src := ml.NewRandomSource()
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return err
		}
		src = ml.NewSource(seed)
	}

	m, err := model.New(arch, config, src)
	if err != nil {
		return err
	}

	return saveModel(cmd, args[0], m)
}

// ConvertHandler - Importiert einen PyTorch-Checkpoint
func ConvertHandler(cmd *cobra.Command, args []string) error {
	arch, config, err := modelConfig(cmd)
	if err != nil {
		return err
	}

	m, report, err := convert.FromTorch(args[0], arch, config)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	printReport(cmd.ErrOrStderr(), report, verbose)

	if strict, _ := cmd.Flags().GetBool("strict"); strict && len(report.Missing) > 0 {
		return errors.New("checkpoint is missing parameters")
	}

	return saveModel(cmd, args[1], m)
}

// printReport - Gibt die Zusammenfassung einer Konvertierung aus
func printReport(w io.Writer, r *convert.Report, verbose bool) {
	fmt.Fprintf(w, "loaded %d, missing %d, unused %d tensor(s)\n", len(r.Loaded), len(r.Missing), len(r.Unused))
	if !verbose {
		return
	}

	for _, name := range r.Missing {
		fmt.Fprintf(w, "  missing %s\n", name)
	}
	for _, name := range r.Unused {
		fmt.Fprintf(w, "  unused  %s\n", name)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Model configuration file (yaml, json or toml)")
	cmd.Flags().String("arch", "", "Model architecture (overrides 'architecture' in the config)")
	cmd.Flags().StringArray("set", nil, "Override a config value, e.g. --set vae.num_tokens=512")
	cmd.Flags().String("dtype", "f32", "Storage data type (f32, f16, bf16)")
}

// newCreateCmd - Erstellt den create Command
func newCreateCmd() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create MODEL",
		Short: "Create a randomly initialized model from a config",
		Args:  cobra.ExactArgs(1),
		RunE:  CreateHandler,
	}

	addModelFlags(createCmd)
	createCmd.Flags().Uint64("seed", 0, "Seed for parameter initialization")

	return createCmd
}

// newConvertCmd - Erstellt den convert Command
func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert CHECKPOINT MODEL",
		Short: "Import a PyTorch checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE:  ConvertHandler,
	}

	addModelFlags(convertCmd)
	convertCmd.Flags().Bool("strict", false, "Fail if the checkpoint is missing parameters")
	convertCmd.Flags().BoolP("verbose", "v", false, "List missing and unused tensors")

	return convertCmd
}
