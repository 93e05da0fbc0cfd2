package errtypes

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{Configuration("dvae", "num_layers must be >= 1"), ErrConfiguration},
		{Precondition("generate", "no VAE attached"), ErrPrecondition},
		{Shape("decode", []int{1, 5}, "not a square"), ErrShape},
	}

	sentinels := []error{ErrConfiguration, ErrPrecondition, ErrShape}
	for _, tt := range cases {
		wrapped := fmt.Errorf("outer: %w", tt.err)
		for _, s := range sentinels {
			if got := errors.Is(wrapped, s); got != (s == tt.want) {
				t.Errorf("errors.Is(%v, %v) = %v", wrapped, s, got)
			}
		}
	}
}

func TestMessages(t *testing.T) {
	if got := Shape("decode", []int{1, 5}, "sequence length %d is not a perfect square", 5).Error(); got != "decode: shape [1 5]: sequence length 5 is not a perfect square" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ModelNotFoundError{Model: "dalle:latest"}).Error(); got != `model not found: "dalle:latest"` {
		t.Errorf("Error() = %q", got)
	}
}
