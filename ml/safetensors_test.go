package ml

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSafetensorsRoundTrip(t *testing.T) {
	arrays := []NamedArray{
		{Name: "z.weight", Array: NewArray([]float32{0.5, -1.25, 2, 3}, 2, 2)},
		{Name: "a.bias", Array: NewArray([]float32{1, 0.25}, 2)},
	}

	cases := []struct {
		dtype DType
		tol   float64
	}{
		{DTypeF32, 0},
		{DTypeF16, 1e-3},
		{DTypeBF16, 1e-2},
	}

	for _, tt := range cases {
		t.Run(tt.dtype.String(), func(t *testing.T) {
			var b bytes.Buffer
			if err := WriteSafetensors(&b, arrays, tt.dtype, map[string]string{"architecture": "test"}); err != nil {
				t.Fatal(err)
			}

			st, err := ReadSafetensors(&b)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff([]string{"z.weight", "a.bias"}, st.Names()); diff != "" {
				t.Errorf("Reihenfolge mismatch (-want +got):\n%s", diff)
			}
			if st.Metadata["architecture"] != "test" {
				t.Errorf("Metadata = %v", st.Metadata)
			}

			for _, na := range arrays {
				got, ok := st.Get(na.Name)
				if !ok {
					t.Fatalf("%s fehlt", na.Name)
				}
				if diff := cmp.Diff(na.Array.Shape(), got.Shape()); diff != "" {
					t.Errorf("%s Shape mismatch (-want +got):\n%s", na.Name, diff)
				}
				if diff := cmp.Diff(na.Array.Data(), got.Data(), cmpopts.EquateApprox(0, tt.tol)); diff != "" {
					t.Errorf("%s Data mismatch (-want +got):\n%s", na.Name, diff)
				}
			}
		})
	}
}

func TestSafetensorsDuplicateName(t *testing.T) {
	arrays := []NamedArray{
		{Name: "w", Array: Zeros(1)},
		{Name: "w", Array: Zeros(1)},
	}
	if err := WriteSafetensors(&bytes.Buffer{}, arrays, DTypeF32, nil); err == nil {
		t.Error("erwartet Fehler fuer doppelten Namen")
	}
}

func TestReadSafetensorsTruncated(t *testing.T) {
	if _, err := ReadSafetensors(bytes.NewReader([]byte{1, 2, 3})); !errors.Is(err, ErrInvalidSafetensors) {
		t.Errorf("err = %v, erwartet ErrInvalidSafetensors", err)
	}
}

func TestParseDType(t *testing.T) {
	for s, want := range map[string]DType{"f32": DTypeF32, "F16": DTypeF16, "bf16": DTypeBF16} {
		got, err := ParseDType(s)
		if err != nil || got != want {
			t.Errorf("ParseDType(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseDType("q4_0"); err == nil {
		t.Error("erwartet Fehler fuer q4_0")
	}
}
