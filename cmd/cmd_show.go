// cmd_show.go - Show Command und Modell-Info Anzeige
// Hauptfunktionen: ShowHandler, showInfo, configRows
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/format"
)

// ShowHandler - Zeigt Modell-Informationen an
func ShowHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	config, err := cmd.Flags().GetBool("config")
	if err != nil {
		return err
	}

	resp, err := client.Show(cmd.Context(), &api.ShowRequest{Model: args[0], Verbose: verbose})
	if err != nil {
		return err
	}

	if config {
		var out bytes.Buffer
		if err := json.Indent(&out, resp.Config, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
		return nil
	}

	return showInfo(resp, verbose, cmd.OutOrStdout())
}

// showInfo - Gibt detaillierte Modell-Informationen aus
func showInfo(resp *api.ShowResponse, verbose bool, w io.Writer) error {
	tableRender := func(header string, rows func() [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows())
		table.Render()
		fmt.Fprintln(w)
	}

	tableRender("Model", func() (rows [][]string) {
		rows = append(rows, []string{"", "architecture", resp.Details.Architecture})
		rows = append(rows, []string{"", "parameters", format.HumanNumber(uint64(resp.Details.ParameterCount))})
		return
	})

	config, err := configRows(resp.Config)
	if err != nil {
		return err
	}

	if len(config) > 0 {
		tableRender("Config", func() [][]string {
			return config
		})
	}

	if len(resp.Tensors) > 0 && verbose {
		tableRender("Tensors", func() (rows [][]string) {
			for _, t := range resp.Tensors {
				rows = append(rows, []string{"", t.Name, fmt.Sprint(t.Shape)})
			}
			return
		})
	}

	return nil
}

// configRows - Flacht die Konfiguration in Dateireihenfolge ab, verschachtelte
// Objekte werden mit Punkt-Praefix ausgegeben (z.B. vae.num_tokens)
func configRows(raw json.RawMessage) ([][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var rows [][]string
	var walk func(prefix string, raw json.RawMessage) error
	walk = func(prefix string, raw json.RawMessage) error {
		om := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(raw, om); err != nil {
			return err
		}

		for pair := om.Oldest(); pair != nil; pair = pair.Next() {
			key := pair.Key
			if prefix != "" {
				key = prefix + "." + key
			}

			if v := bytes.TrimSpace(pair.Value); len(v) > 0 && v[0] == '{' {
				if err := walk(key, v); err != nil {
					return err
				}
				continue
			}

			rows = append(rows, []string{"", key, strings.Trim(string(pair.Value), `"`)})
		}
		return nil
	}

	if err := walk("", raw); err != nil {
		return nil, err
	}
	return rows, nil
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:     "show MODEL",
		Short:   "Show information for a model",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ShowHandler,
	}

	showCmd.Flags().Bool("config", false, "Show the model configuration as JSON")
	showCmd.Flags().BoolP("verbose", "v", false, "Show detailed model information")

	return showCmd
}
