// Package report renders training diagnostics.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/grt-lin-reg-tool/core/model"
	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// Plot size.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 5 * vg.Inch
)

var supportedFormats = map[string]bool{
	".png": true, ".svg": true, ".pdf": true,
	".jpg": true, ".jpeg": true, ".eps": true, ".tif": true, ".tiff": true,
}

// PlotTrainingCurve draws training RMS against epoch, one line per target,
// plus dashed validation RMS lines when the history has them. The image
// format follows filename's extension.
func PlotTrainingCurve(history []model.EpochRecord, filename string) error {
	if len(history) == 0 {
		return errors.NewValueError("PlotTrainingCurve", "training history is empty")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedFormats[ext] {
		return errors.NewValueError("PlotTrainingCurve", fmt.Sprintf("unsupported image format %q", ext))
	}

	byTarget := map[int][]model.EpochRecord{}
	for _, r := range history {
		byTarget[r.Target] = append(byTarget[r.Target], r)
	}
	targets := make([]int, 0, len(byTarget))
	for t := range byTarget {
		targets = append(targets, t)
	}
	sort.Ints(targets)

	p := plot.New()
	p.Title.Text = "Training curve"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "RMS error"
	p.Add(plotter.NewGrid())

	for i, t := range targets {
		records := byTarget[t]
		train := make(plotter.XYs, len(records))
		var validation plotter.XYs
		for j, r := range records {
			train[j] = plotter.XY{X: float64(r.Epoch), Y: r.TrainingRMS}
			if r.HasValidation() {
				validation = append(validation, plotter.XY{X: float64(r.Epoch), Y: r.ValidationRMS})
			}
		}

		line, err := plotter.NewLine(train)
		if err != nil {
			return errors.Wrapf(err, "target %d training line", t)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("target %d training", t), line)

		if len(validation) > 0 {
			vline, err := plotter.NewLine(validation)
			if err != nil {
				return errors.Wrapf(err, "target %d validation line", t)
			}
			vline.Color = plotutil.Color(i)
			vline.Dashes = plotutil.Dashes(1)
			p.Add(vline)
			p.Legend.Add(fmt.Sprintf("target %d validation", t), vline)
		}
	}
	p.Legend.Top = true

	if err := p.Save(PlotWidth, PlotHeight, filename); err != nil {
		return errors.Wrapf(err, "failed to save plot to %s", filename)
	}
	return nil
}
