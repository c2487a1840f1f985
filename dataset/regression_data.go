// Package dataset holds labelled regression data and reads and writes it
// in the GRT regression file format and as plain CSV.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// DefaultDatasetName is used until a name is set or loaded.
const DefaultDatasetName = "NOT_SET"

// Sample is one labelled example.
type Sample struct {
	Input  []float64
	Target []float64
}

// RegressionData is an ordered set of samples that all share the same
// input and target dimensions.
//
// 使用例:
//
//	data := dataset.NewRegressionData()
//	data.SetInputAndTargetDimensions(2, 1)
//	if err := data.Load("train.csv"); err != nil { ... }
//	X, Y := data.Matrices()
type RegressionData struct {
	name       string
	infoText   string
	numInputs  int
	numTargets int
	samples    []Sample

	useExternalRanges    bool
	externalInputRanges  [][2]float64
	externalTargetRanges [][2]float64
}

// NewRegressionData returns an empty dataset with no dimensions set.
func NewRegressionData() *RegressionData {
	return &RegressionData{name: DefaultDatasetName}
}

// DatasetName returns the dataset's name.
func (d *RegressionData) DatasetName() string { return d.name }

// SetDatasetName sets the name. Names may not contain whitespace since the
// GRT format stores them as a single token.
func (d *RegressionData) SetDatasetName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return errors.NewValidationError("DatasetName", "name must be a non-empty single word", name)
	}
	d.name = name
	return nil
}

// InfoText returns the free-form description.
func (d *RegressionData) InfoText() string { return d.infoText }

// SetInfoText sets the free-form description. Newlines are replaced by
// spaces.
func (d *RegressionData) SetInfoText(text string) {
	d.infoText = strings.Join(strings.Fields(text), " ")
}

// SetInputAndTargetDimensions clears all samples and external ranges and
// fixes the shape of future samples.
func (d *RegressionData) SetInputAndTargetDimensions(numInputs, numTargets int) error {
	if numInputs <= 0 || numTargets <= 0 {
		return errors.NewValidationError("dimensions",
			fmt.Sprintf("input and target dimensions must be positive, got %d and %d", numInputs, numTargets),
			[2]int{numInputs, numTargets})
	}
	d.Clear()
	d.numInputs = numInputs
	d.numTargets = numTargets
	d.useExternalRanges = false
	d.externalInputRanges = nil
	d.externalTargetRanges = nil
	return nil
}

// NumInputDimensions returns N.
func (d *RegressionData) NumInputDimensions() int { return d.numInputs }

// NumTargetDimensions returns T.
func (d *RegressionData) NumTargetDimensions() int { return d.numTargets }

// NumSamples returns K.
func (d *RegressionData) NumSamples() int { return len(d.samples) }

// Sample returns the i-th sample. The slices are shared with the dataset.
func (d *RegressionData) Sample(i int) Sample { return d.samples[i] }

// AddSample appends a copy of input and target.
func (d *RegressionData) AddSample(input, target []float64) error {
	if len(input) != d.numInputs {
		return errors.NewDimensionError("RegressionData.AddSample", d.numInputs, len(input), 1)
	}
	if len(target) != d.numTargets {
		return errors.NewDimensionError("RegressionData.AddSample", d.numTargets, len(target), 1)
	}
	d.samples = append(d.samples, Sample{
		Input:  append([]float64(nil), input...),
		Target: append([]float64(nil), target...),
	})
	return nil
}

// Clear removes all samples but keeps the dimensions.
func (d *RegressionData) Clear() {
	d.samples = nil
}

// EnableExternalRanges makes InputRanges and TargetRanges return the
// given ranges instead of the ranges observed in the data.
func (d *RegressionData) EnableExternalRanges(inputRanges, targetRanges [][2]float64) error {
	if len(inputRanges) != d.numInputs {
		return errors.NewDimensionError("RegressionData.EnableExternalRanges", d.numInputs, len(inputRanges), 0)
	}
	if len(targetRanges) != d.numTargets {
		return errors.NewDimensionError("RegressionData.EnableExternalRanges", d.numTargets, len(targetRanges), 0)
	}
	d.useExternalRanges = true
	d.externalInputRanges = append([][2]float64(nil), inputRanges...)
	d.externalTargetRanges = append([][2]float64(nil), targetRanges...)
	return nil
}

// UsesExternalRanges reports whether external ranges are in effect.
func (d *RegressionData) UsesExternalRanges() bool { return d.useExternalRanges }

// InputRanges returns [min, max] per input column.
func (d *RegressionData) InputRanges() [][2]float64 {
	if d.useExternalRanges {
		return append([][2]float64(nil), d.externalInputRanges...)
	}
	return d.columnRanges(d.numInputs, func(s Sample) []float64 { return s.Input })
}

// TargetRanges returns [min, max] per target column.
func (d *RegressionData) TargetRanges() [][2]float64 {
	if d.useExternalRanges {
		return append([][2]float64(nil), d.externalTargetRanges...)
	}
	return d.columnRanges(d.numTargets, func(s Sample) []float64 { return s.Target })
}

func (d *RegressionData) columnRanges(cols int, pick func(Sample) []float64) [][2]float64 {
	if len(d.samples) == 0 {
		return nil
	}
	ranges := make([][2]float64, cols)
	col := make([]float64, len(d.samples))
	for j := 0; j < cols; j++ {
		for i, s := range d.samples {
			col[i] = pick(s)[j]
		}
		ranges[j] = [2]float64{floats.Min(col), floats.Max(col)}
	}
	return ranges
}

// Matrices returns the inputs as a K×N matrix and the targets as a K×T
// matrix. Both are nil when the dataset is empty.
func (d *RegressionData) Matrices() (X, Y *mat.Dense) {
	k := len(d.samples)
	if k == 0 {
		return nil, nil
	}
	X = mat.NewDense(k, d.numInputs, nil)
	Y = mat.NewDense(k, d.numTargets, nil)
	for i, s := range d.samples {
		X.SetRow(i, s.Input)
		Y.SetRow(i, s.Target)
	}
	return X, Y
}

// Load reads filename into the dataset. Files ending in .csv (any case)
// are read as CSV and need the dimensions set beforehand. Everything else
// is read as a GRT regression file. On failure the dataset is unchanged.
func (d *RegressionData) Load(filename string) error {
	if isCSV(filename) {
		return d.LoadCSVFile(filename)
	}
	return d.LoadGRTFile(filename)
}

// Save writes the dataset to filename, choosing the format the same way
// Load does.
func (d *RegressionData) Save(filename string) error {
	if isCSV(filename) {
		return d.SaveCSVFile(filename)
	}
	return d.SaveGRTFile(filename)
}

// String summarises the dataset.
func (d *RegressionData) String() string {
	return fmt.Sprintf("RegressionData(name=%s, samples=%d, inputs=%d, targets=%d)",
		d.name, len(d.samples), d.numInputs, d.numTargets)
}

// replace swaps in a fully parsed dataset.
func (d *RegressionData) replace(other *RegressionData) {
	*d = *other
}

func isCSV(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}
