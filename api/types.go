// types.go - Core API Types (Basis-Typen, Errors, Options, Metriken)
// Enthaelt: StatusError, ImageData, Metrics, Options, Duration
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/ollama/dalle/envconfig"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the dalle server logs for details"
	}
}

// ImageData represents the raw binary data of an image file.
type ImageData []byte

// Metrics enthaelt Laufzeit-Metriken einer Generierung
type Metrics struct {
	TotalDuration  time.Duration `json:"total_duration,omitempty"`
	LoadDuration   time.Duration `json:"load_duration,omitempty"`
	SampleCount    int           `json:"sample_count,omitempty"`
	SampleDuration time.Duration `json:"sample_duration,omitempty"`
}

func (m *Metrics) Summary() {
	if m.TotalDuration > 0 {
		fmt.Fprintf(os.Stderr, "total duration:       %v\n", m.TotalDuration)
	}

	if m.LoadDuration > 0 {
		fmt.Fprintf(os.Stderr, "load duration:        %v\n", m.LoadDuration)
	}

	if m.SampleCount > 0 {
		fmt.Fprintf(os.Stderr, "sample count:         %d token(s)\n", m.SampleCount)
	}

	if m.SampleDuration > 0 {
		fmt.Fprintf(os.Stderr, "sample duration:      %s\n", m.SampleDuration)
		fmt.Fprintf(os.Stderr, "sample rate:          %.2f tokens/s\n", float64(m.SampleCount)/m.SampleDuration.Seconds())
	}
}

// Options specified in [GenerateRequest].
type Options struct {
	FilterThreshold float32 `json:"filter_threshold,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`

	// Seed < 0 waehlt einen zufaelligen Seed
	Seed int `json:"seed,omitempty"`
}

// DefaultOptions gibt die Standard-Optionen aus der Umgebung zurueck
func DefaultOptions() Options {
	opts := Options{
		FilterThreshold: float32(envconfig.FilterThreshold()),
		Temperature:     float32(envconfig.Temperature()),
		Seed:            -1,
	}

	if seed := envconfig.Seed(); seed != nil {
		opts.Seed = int(*seed)
	}

	return opts
}

func (opts *Options) FromMap(m map[string]any) error {
	valueOpts := reflect.ValueOf(opts).Elem() // names of the fields in the options struct
	typeOpts := reflect.TypeOf(opts).Elem()   // types of the fields in the options struct

	// build map of json struct tags to their types
	jsonOpts := make(map[string]reflect.StructField)
	for _, field := range reflect.VisibleFields(typeOpts) {
		jsonTag := strings.Split(field.Tag.Get("json"), ",")[0]
		if jsonTag != "" {
			jsonOpts[jsonTag] = field
		}
	}

	for key, val := range m {
		opt, ok := jsonOpts[key]
		if !ok {
			slog.Warn("invalid option provided", "option", key)
			continue
		}

		field := valueOpts.FieldByName(opt.Name)
		if !field.IsValid() || !field.CanSet() || val == nil {
			continue
		}

		switch field.Kind() {
		case reflect.Int:
			switch t := val.(type) {
			case int64:
				field.SetInt(t)
			case int:
				field.SetInt(int64(t))
			case float64:
				// when JSON unmarshals numbers, it uses float64, not int
				field.SetInt(int64(t))
			default:
				return fmt.Errorf("option %q must be of type integer", key)
			}
		case reflect.Float32:
			switch t := val.(type) {
			case float64:
				field.SetFloat(t)
			case float32:
				field.SetFloat(float64(t))
			default:
				return fmt.Errorf("option %q must be of type float32", key)
			}
		default:
			return fmt.Errorf("unknown type loading config params: %v", field.Kind())
		}
	}

	return nil
}

// Duration ist ein JSON-serialisierbarer time.Duration Wrapper
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Duration < 0 {
		return []byte("-1"), nil
	}
	return []byte("\"" + d.Duration.String() + "\""), nil
}

func (d *Duration) UnmarshalJSON(b []byte) (err error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	d.Duration = 5 * time.Minute

	switch t := v.(type) {
	case float64:
		if t < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		} else {
			d.Duration = time.Duration(t * float64(time.Second))
		}
	case string:
		d.Duration, err = time.ParseDuration(t)
		if err != nil {
			return err
		}
		if d.Duration < 0 {
			d.Duration = time.Duration(math.MaxInt64)
		}
	default:
		return fmt.Errorf("Unsupported type: '%s'", reflect.TypeOf(v))
	}

	return nil
}
