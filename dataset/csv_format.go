package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// LoadCSVFile reads a CSV file whose rows hold N inputs followed by T
// targets. N and T must have been set with SetInputAndTargetDimensions.
func (d *RegressionData) LoadCSVFile(filename string) error {
	if err := d.requireDimensions(); err != nil {
		return err
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer f.Close()
	return d.readCSV(f, filename)
}

// LoadCSV reads CSV rows from r.
func (d *RegressionData) LoadCSV(r io.Reader) error {
	if err := d.requireDimensions(); err != nil {
		return err
	}
	return d.readCSV(r, "")
}

func (d *RegressionData) requireDimensions() error {
	if d.numInputs <= 0 || d.numTargets <= 0 {
		return errors.NewValidationError("dimensions",
			"the number of input and target dimensions must be set before loading a CSV file",
			[2]int{d.numInputs, d.numTargets})
	}
	return nil
}

func (d *RegressionData) readCSV(r io.Reader, file string) error {
	out := &RegressionData{
		name:       d.name,
		infoText:   d.infoText,
		numInputs:  d.numInputs,
		numTargets: d.numTargets,
	}
	width := d.numInputs + d.numTargets

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	row := make([]float64, width)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return errors.NewDataFormatError(file, pe.Line, pe.Err.Error())
			}
			return errors.Wrap(err, "failed to read CSV data")
		}
		line, _ := cr.FieldPos(0)
		if len(record) != width {
			return errors.NewDataFormatError(file, line,
				"expected "+strconv.Itoa(width)+" fields, got "+strconv.Itoa(len(record)))
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return errors.NewDataFormatError(file, line,
					"field "+strconv.Itoa(j+1)+" is not a number: "+strconv.Quote(field))
			}
			row[j] = v
		}
		if err := out.AddSample(row[:d.numInputs], row[d.numInputs:]); err != nil {
			return err
		}
	}

	if out.NumSamples() == 0 {
		return errors.NewDataFormatError(file, 0, "no samples")
	}
	d.replace(out)
	return nil
}

// SaveCSVFile writes one sample per row, inputs first.
func (d *RegressionData) SaveCSVFile(filename string) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", filename)
		}
	}()
	return d.SaveCSV(f)
}

// SaveCSV writes the samples as CSV to w.
func (d *RegressionData) SaveCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	record := make([]string, d.numInputs+d.numTargets)
	for _, s := range d.samples {
		for j, v := range s.Input {
			record[j] = formatFloat(v)
		}
		for j, v := range s.Target {
			record[d.numInputs+j] = formatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "failed to write CSV data")
	}
	return nil
}
