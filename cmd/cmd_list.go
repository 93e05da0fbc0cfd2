// cmd_list.go - List, PS und Delete Commands
// Hauptfunktionen: ListHandler, ListRunningHandler, DeleteHandler
package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/format"
)

// renderTable - Schreibt eine Tabelle im CLI-Stil ohne Rahmen
func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// ListHandler - Listet alle gespeicherten Modelle auf
func ListHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	models, err := client.List(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range models.Models {
		if len(args) == 0 || strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(args[0])) {
			data = append(data, []string{
				m.Name,
				m.Details.Architecture,
				format.HumanNumber(uint64(m.Details.ParameterCount)),
				format.HumanBytes(m.Size),
				format.HumanTime(m.ModifiedAt, "Never"),
			})
		}
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "PARAMS", "SIZE", "MODIFIED"}, data)
	return nil
}

// ListRunningHandler - Listet alle geladenen Modelle auf
func ListRunningHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	models, err := client.ListRunning(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range models.Models {
		if len(args) == 0 || strings.HasPrefix(m.Name, args[0]) {
			var until string
			delta := time.Since(m.ExpiresAt)
			if delta > 0 {
				until = "Stopping..."
			} else {
				until = format.HumanTime(m.ExpiresAt, "Never")
			}
			data = append(data, []string{m.Name, m.Details.Architecture, format.HumanNumber(uint64(m.Details.ParameterCount)), until})
		}
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "PARAMS", "UNTIL"}, data)
	return nil
}

// DeleteHandler - Loescht Modelle aus dem Model-Verzeichnis
func DeleteHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	for _, name := range args {
		if err := client.Delete(cmd.Context(), &api.DeleteRequest{Model: name}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted '%s'\n", name)
	}
	return nil
}

// newListCmd - Erstellt den list Command
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List models",
		PreRunE: checkServerHeartbeat,
		RunE:    ListHandler,
	}
}

// newPsCmd - Erstellt den ps Command
func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ps",
		Short:   "List loaded models",
		PreRunE: checkServerHeartbeat,
		RunE:    ListRunningHandler,
	}
}

// newDeleteCmd - Erstellt den rm Command
func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm MODEL [MODEL...]",
		Short:   "Remove a model",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    DeleteHandler,
	}
}
