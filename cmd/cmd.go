// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "dalle",
		Short:         "Text-to-image generation with a discrete VAE and a transformer",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	createCmd := newCreateCmd()
	convertCmd := newConvertCmd()
	showCmd := newShowCmd()
	generateCmd := newGenerateCmd()
	scoreCmd := newScoreCmd()
	listCmd := newListCmd()
	psCmd := newPsCmd()
	deleteCmd := newDeleteCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["DALLE_HOST"]}

	for _, cmd := range []*cobra.Command{
		serveCmd,
		createCmd,
		convertCmd,
		showCmd,
		generateCmd,
		scoreCmd,
		listCmd,
		psCmd,
		deleteCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["DALLE_DEBUG"],
				envVars["DALLE_HOST"],
				envVars["DALLE_MODELS"],
				envVars["DALLE_ORIGINS"],
				envVars["DALLE_LOAD_TIMEOUT"],
				envVars["DALLE_FILTER_THRESHOLD"],
				envVars["DALLE_TEMPERATURE"],
				envVars["DALLE_SEED"],
				envVars["DALLE_MAX_SAMPLES"],
				envVars["DALLE_NUM_THREADS"],
			})
		case createCmd, convertCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["DALLE_MODELS"]})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		createCmd,
		convertCmd,
		showCmd,
		generateCmd,
		scoreCmd,
		listCmd,
		psCmd,
		deleteCmd,
	)

	return rootCmd
}
