package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "grtreg: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not trained",
			err:     nil,
			wantMsg: "grtreg: Predict: not trained",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 3, 2, 1)

	want := "grtreg: Predict: dimension mismatch on axis 1 (features). Expected 3, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 3 || dimErr.Got != 2 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "grtreg: LinearRegression: this model is not trained yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewDataFormatError(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		line    int
		wantMsg string
	}{
		{"with line", "data.csv", 7, "grtreg: data.csv:7: bad row"},
		{"without line", "data.grt", 0, "grtreg: data.grt: bad row"},
		{"reader input", "", 2, "grtreg: <input>:2: bad row"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDataFormatError(tt.file, tt.line, "bad row")
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			var fmtErr *DataFormatError
			if !As(err, &fmtErr) {
				t.Error("Error should be castable to *DataFormatError")
			}
		})
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("LinearRegression", 500, "loss still changing")

	want := "LinearRegression failed to converge after 500 iterations: loss still changing"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	zl.Warn().EmbedObject(warn).Msg("warn")
	if !strings.Contains(buf.String(), `"iterations":500`) {
		t.Errorf("expected structured iterations field, got %s", buf.String())
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("LinearRegression", 10, ""))

	if len(got) != 1 {
		t.Fatalf("expected 1 routed warning, got %d", len(got))
	}

	SetZerologWarnFunc(nil)
	prev := warningHandler
	defer SetWarningHandler(prev)
	var fallback int
	SetWarningHandler(func(error) { fallback++ })
	Warn(New("fallback"))
	if fallback != 1 {
		t.Errorf("expected fallback handler to be called once, got %d", fallback)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("sse", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckScalar("sse", nan(), 4)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 4 {
		t.Errorf("Iteration = %d, want 4", numErr.Iteration)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in LinearRegression.Fit")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in LinearRegression.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}

	wrappedf := Wrapf(ErrChecksumMismatch, "loading %s", "model.grt")
	if !Is(wrappedf, ErrChecksumMismatch) {
		t.Error("Expected Is(wrappedf, ErrChecksumMismatch) to be true")
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}
	if !Is(err3, err1) {
		t.Error("Expected Is to find the base error through ModelError.Unwrap")
	}
}
