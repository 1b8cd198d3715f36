// Package report renders training curves and test accuracy to PNG files.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"kws/train"
	"kws/utils"
)

var (
	trainColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	valColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// SaveCharts writes loss.png, accuracy.png and test_accuracy.png into outDir,
// creating the directory if needed. Returns the paths written.
func SaveCharts(h *train.History, testAcc float64, outDir string) ([]string, error) {
	err := utils.MkDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("error creating output directory: %v", err)
	}

	lossPath := filepath.Join(outDir, "loss.png")
	err = saveSeries(lossPath, "Loss over Epochs", "Loss", h.TrainLoss, h.ValLoss)
	if err != nil {
		return nil, err
	}

	accPath := filepath.Join(outDir, "accuracy.png")
	err = saveSeries(accPath, "Accuracy over Epochs", "Accuracy (%)", h.TrainAcc, h.ValAcc)
	if err != nil {
		return nil, err
	}

	testPath := filepath.Join(outDir, "test_accuracy.png")
	err = saveTestBar(testPath, testAcc)
	if err != nil {
		return nil, err
	}

	return []string{lossPath, accPath, testPath}, nil
}

func saveSeries(path, title, yLabel string, trainVals, valVals []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	trainLine, err := plotter.NewLine(epochXYs(trainVals))
	if err != nil {
		return fmt.Errorf("error building train line: %v", err)
	}
	trainLine.Color = trainColor

	valLine, err := plotter.NewLine(epochXYs(valVals))
	if err != nil {
		return fmt.Errorf("error building validation line: %v", err)
	}
	valLine.Color = valColor

	p.Add(trainLine, valLine)
	p.Legend.Add("train", trainLine)
	p.Legend.Add("val", valLine)

	err = p.Save(6*vg.Inch, 4*vg.Inch, path)
	if err != nil {
		return fmt.Errorf("error saving chart %s: %v", path, err)
	}
	return nil
}

func saveTestBar(path string, testAcc float64) error {
	p := plot.New()
	p.Title.Text = "Test Set Accuracy"
	p.Y.Label.Text = "Accuracy (%)"
	p.Y.Max = 100

	bar, err := plotter.NewBarChart(plotter.Values{testAcc}, vg.Points(40))
	if err != nil {
		return fmt.Errorf("error building bar chart: %v", err)
	}
	bar.Color = trainColor
	p.Add(bar)
	p.NominalX("test")

	err = p.Save(4*vg.Inch, 4*vg.Inch, path)
	if err != nil {
		return fmt.Errorf("error saving chart %s: %v", path, err)
	}
	return nil
}

func epochXYs(vals []float64) plotter.XYs {
	xys := make(plotter.XYs, len(vals))
	for i, v := range vals {
		xys[i].X = float64(i + 1)
		xys[i].Y = v
	}
	return xys
}
