// Package errtypes contains custom error types
//
// Die drei Fehlerklassen des Modell-Kerns:
// - ConfigurationError: Ungueltige Konstruktions-Parameter
// - PreconditionError: Aufruf in einem ungueltigen Zustand
// - ShapeError: Formen passen nicht zusammen
//
// Jede Klasse laesst sich ueber errors.Is mit ihrem Sentinel pruefen.
package errtypes

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrPrecondition  = errors.New("precondition error")
	ErrShape         = errors.New("shape error")
)

const (
	ModelNotFoundErrMsg    = "model not found"
	InvalidModelNameErrMsg = "invalid model name"
)

type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Component, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configuration erstellt einen ConfigurationError mit formatiertem Grund.
func Configuration(component, format string, args ...any) error {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// Precondition erstellt einen PreconditionError mit formatiertem Grund.
func Precondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

type ShapeError struct {
	Op     string
	Shape  []int
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Shape != nil {
		return fmt.Sprintf("%s: shape %v: %s", e.Op, e.Shape, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// Shape erstellt einen ShapeError mit formatiertem Grund.
func Shape(op string, shape []int, format string, args ...any) error {
	return &ShapeError{Op: op, Shape: shape, Reason: fmt.Sprintf(format, args...)}
}

type ModelLoadError struct {
	Model  string
	Reason string
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model %q: %s", e.Model, e.Reason)
}

type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ModelNotFoundErrMsg, e.Model)
}
