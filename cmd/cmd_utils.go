// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: checkServerHeartbeat, parseTokens, parseMask, readConfig
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ollama/dalle/api"
)

// checkServerHeartbeat - Prueft ob der Server erreichbar ist
func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}
	if err := client.Heartbeat(cmd.Context()); err != nil {
		if strings.Contains(err.Error(), " refused") || strings.Contains(err.Error(), "could not connect") {
			return errors.New("dalle server not responding, start it with 'dalle serve'")
		}
		return err
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// parseTokens - Liest Token-Ids aus einer komma- oder leerzeichen-getrennten Liste
func parseTokens(s string) ([]int32, error) {
	var tokens []int32
	for _, f := range splitList(s) {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token %q", f)
		}
		tokens = append(tokens, int32(n))
	}

	if len(tokens) == 0 {
		return nil, errors.New("no tokens given")
	}
	return tokens, nil
}

// parseMask - Liest eine Maske aus 1/0 oder true/false Eintraegen
func parseMask(s string) ([]bool, error) {
	if s == "" {
		return nil, nil
	}

	var mask []bool
	for _, f := range splitList(s) {
		b, err := strconv.ParseBool(f)
		if err != nil {
			return nil, fmt.Errorf("invalid mask entry %q", f)
		}
		mask = append(mask, b)
	}
	return mask, nil
}

// readConfig - Liest eine Modell-Konfiguration (YAML, JSON oder TOML) und
// gibt Architektur und Konfiguration als JSON zurueck. overrides haben die
// Form key=value, verschachtelte Schluessel mit Punkt (z.B. vae.num_tokens=512).
func readConfig(path string, overrides []string) (string, []byte, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok || key == "" {
			return "", nil, fmt.Errorf("invalid override %q, expected key=value", o)
		}

		var val any
		if err := json.Unmarshal([]byte(value), &val); err != nil {
			val = value
		}
		v.Set(key, val)
	}

	settings := v.AllSettings()
	arch, _ := settings["architecture"].(string)
	delete(settings, "architecture")

	config, err := json.Marshal(settings)
	if err != nil {
		return "", nil, err
	}
	return arch, config, nil
}
