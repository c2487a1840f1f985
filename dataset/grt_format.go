package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/magiconair/properties"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// GRTFileHeader is the first line of every GRT regression file.
const GRTFileHeader = "GRT_LABELLED_REGRESSION_DATA_FILE_V1.0"

const (
	keyDatasetName       = "DatasetName"
	keyInfoText          = "InfoText"
	keyNumInputs         = "NumInputDimensions"
	keyNumTargets        = "NumTargetDimensions"
	keyNumExamples       = "TotalNumTrainingExamples"
	keyUseExternalRanges = "UseExternalRanges"

	sectionInputRanges  = "ExternalInputRanges:"
	sectionTargetRanges = "ExternalTargetRanges:"
	sectionData         = "RegressionData:"
)

// LoadGRTFile reads a GRT regression file. Dimensions declared in the
// file replace any set on the dataset.
func (d *RegressionData) LoadGRTFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer f.Close()
	return d.readGRT(f, filename)
}

// LoadGRT reads the GRT regression format from r.
func (d *RegressionData) LoadGRT(r io.Reader) error {
	return d.readGRT(r, "")
}

// lineReader yields trimmed non-blank lines with their 1-based numbers.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next() (string, int, bool) {
	for lr.sc.Scan() {
		lr.line++
		if text := strings.TrimSpace(lr.sc.Text()); text != "" {
			return text, lr.line, true
		}
	}
	return "", lr.line, false
}

func (d *RegressionData) readGRT(r io.Reader, file string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lr := &lineReader{sc: sc}
	fail := func(line int, format string, args ...interface{}) error {
		return errors.NewDataFormatError(file, line, fmt.Sprintf(format, args...))
	}

	text, line, ok := lr.next()
	if !ok {
		if err := sc.Err(); err != nil {
			return errors.Wrap(err, "failed to read GRT header")
		}
		return fail(0, "file is empty")
	}
	if text != GRTFileHeader {
		return fail(line, "expected %q, got %q", GRTFileHeader, text)
	}

	// Header lines run until the first section marker.
	var header strings.Builder
	headerLine := line + 1
	var section string
	for {
		text, line, ok = lr.next()
		if !ok {
			return fail(line, "missing %s section", sectionData)
		}
		if text == sectionInputRanges || text == sectionData {
			section = text
			break
		}
		header.WriteString(text)
		header.WriteByte('\n')
	}

	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes([]byte(header.String()))
	if err != nil {
		return fail(headerLine, "malformed header: %v", err)
	}

	out := NewRegressionData()
	if name, ok := props.Get(keyDatasetName); ok && strings.TrimSpace(name) != "" {
		out.name = strings.TrimSpace(name)
	}
	if info, ok := props.Get(keyInfoText); ok {
		out.SetInfoText(info)
	}

	headerInt := func(key string, required bool) (int, error) {
		raw, ok := props.Get(key)
		if !ok {
			if required {
				return 0, fail(headerLine, "header is missing %s", key)
			}
			return 0, nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || v < 0 {
			return 0, fail(headerLine, "%s must be a non-negative integer, got %q", key, raw)
		}
		return v, nil
	}
	numInputs, err := headerInt(keyNumInputs, true)
	if err != nil {
		return err
	}
	numTargets, err := headerInt(keyNumTargets, true)
	if err != nil {
		return err
	}
	numExamples, err := headerInt(keyNumExamples, true)
	if err != nil {
		return err
	}
	useExternal, err := headerInt(keyUseExternalRanges, false)
	if err != nil {
		return err
	}
	if err := out.SetInputAndTargetDimensions(numInputs, numTargets); err != nil {
		return fail(headerLine, "invalid dimensions: %v", err)
	}

	if useExternal != 0 {
		if section != sectionInputRanges {
			return fail(line, "UseExternalRanges is set but %s is missing", sectionInputRanges)
		}
		inputRanges, err := readRanges(lr, numInputs, fail)
		if err != nil {
			return err
		}
		text, line, ok = lr.next()
		if !ok || text != sectionTargetRanges {
			return fail(line, "expected %s", sectionTargetRanges)
		}
		targetRanges, err := readRanges(lr, numTargets, fail)
		if err != nil {
			return err
		}
		if err := out.EnableExternalRanges(inputRanges, targetRanges); err != nil {
			return err
		}
		text, line, ok = lr.next()
		if !ok || text != sectionData {
			return fail(line, "expected %s", sectionData)
		}
	} else if section != sectionData {
		return fail(line, "unexpected %s without UseExternalRanges", section)
	}

	width := numInputs + numTargets
	row := make([]float64, width)
	for {
		text, line, ok = lr.next()
		if !ok {
			break
		}
		fields := strings.Fields(text)
		if len(fields) != width {
			return fail(line, "expected %d values, got %d", width, len(fields))
		}
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fail(line, "value %d is not a number: %q", j+1, field)
			}
			row[j] = v
		}
		if err := out.AddSample(row[:numInputs], row[numInputs:]); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "failed to read GRT data")
	}
	if out.NumSamples() != numExamples {
		return fail(line, "%s is %d but the file has %d rows", keyNumExamples, numExamples, out.NumSamples())
	}

	d.replace(out)
	return nil
}

func readRanges(lr *lineReader, n int, fail func(int, string, ...interface{}) error) ([][2]float64, error) {
	ranges := make([][2]float64, n)
	for i := 0; i < n; i++ {
		text, line, ok := lr.next()
		if !ok {
			return nil, fail(line, "expected %d range lines, got %d", n, i)
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fail(line, "a range line needs min and max, got %q", text)
		}
		lo, err1 := strconv.ParseFloat(fields[0], 64)
		hi, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fail(line, "range values must be numbers, got %q", text)
		}
		if hi < lo {
			return nil, fail(line, "range min %g exceeds max %g", lo, hi)
		}
		ranges[i] = [2]float64{lo, hi}
	}
	return ranges, nil
}

// SaveGRTFile writes the dataset in the GRT regression format.
func (d *RegressionData) SaveGRTFile(filename string) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", filename)
		}
	}()
	return d.SaveGRT(f)
}

// SaveGRT writes the GRT regression format to w.
func (d *RegressionData) SaveGRT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, GRTFileHeader)
	fmt.Fprintf(bw, "%s: %s\n", keyDatasetName, d.name)
	fmt.Fprintf(bw, "%s: %s\n", keyInfoText, d.infoText)
	fmt.Fprintf(bw, "%s: %d\n", keyNumInputs, d.numInputs)
	fmt.Fprintf(bw, "%s: %d\n", keyNumTargets, d.numTargets)
	fmt.Fprintf(bw, "%s: %d\n", keyNumExamples, len(d.samples))

	if d.useExternalRanges {
		fmt.Fprintf(bw, "%s: 1\n", keyUseExternalRanges)
		fmt.Fprintln(bw, sectionInputRanges)
		for _, rg := range d.externalInputRanges {
			fmt.Fprintf(bw, "%s\t%s\n", formatFloat(rg[0]), formatFloat(rg[1]))
		}
		fmt.Fprintln(bw, sectionTargetRanges)
		for _, rg := range d.externalTargetRanges {
			fmt.Fprintf(bw, "%s\t%s\n", formatFloat(rg[0]), formatFloat(rg[1]))
		}
	} else {
		fmt.Fprintf(bw, "%s: 0\n", keyUseExternalRanges)
	}

	fmt.Fprintln(bw, sectionData)
	for _, s := range d.samples {
		fields := make([]string, 0, len(s.Input)+len(s.Target))
		for _, v := range s.Input {
			fields = append(fields, formatFloat(v))
		}
		for _, v := range s.Target {
			fields = append(fields, formatFloat(v))
		}
		fmt.Fprintln(bw, strings.Join(fields, "\t"))
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write GRT data")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
