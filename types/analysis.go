package types

import (
	"path"
	"strconv"

	"github.com/zeu5/rps-arena/util"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// PlotLines saves one line per series, series[i] is labelled names[i]
func PlotLines(savePath, title, xLabel, yLabel string, names []string, series [][]float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	for i := 0; i < len(names) && i < len(series); i++ {
		points := make(plotter.XYs, len(series[i]))
		for j, v := range series[i] {
			points[j] = plotter.XY{
				X: float64(j),
				Y: v,
			}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			continue
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(names[i], line)
	}
	if err := util.EnsureDir(path.Dir(savePath)); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, savePath)
}

// trialLengthAnalyzer records the number of ticks of every trial
type trialLengthAnalyzer struct {
	lengths []float64
}

func TrialLengthAnalyzer() Analyzer {
	return &trialLengthAnalyzer{lengths: make([]float64, 0)}
}

func (a *trialLengthAnalyzer) Analyze(_, _ int, _ string, t *Trace) {
	a.lengths = append(a.lengths, float64(t.Len()))
}

func (a *trialLengthAnalyzer) DataSet() DataSet {
	out := make([]float64, len(a.lengths))
	copy(out, a.lengths)
	return out
}

func (a *trialLengthAnalyzer) Reset() {
	a.lengths = make([]float64, 0)
}

// cumulativeRewardAnalyzer records the reward accumulated by one actor over the trials
type cumulativeRewardAnalyzer struct {
	actor      string
	total      float64
	cumulative []float64
}

func CumulativeRewardAnalyzer(actorName string) Analyzer {
	return &cumulativeRewardAnalyzer{actor: actorName, cumulative: make([]float64, 0)}
}

func (a *cumulativeRewardAnalyzer) Analyze(_, _ int, _ string, t *Trace) {
	a.total += float64(t.Rewards()[a.actor])
	a.cumulative = append(a.cumulative, a.total)
}

func (a *cumulativeRewardAnalyzer) DataSet() DataSet {
	out := make([]float64, len(a.cumulative))
	copy(out, a.cumulative)
	return out
}

func (a *cumulativeRewardAnalyzer) Reset() {
	a.total = 0
	a.cumulative = make([]float64, 0)
}

// LinePlotter plots []float64 datasets, one line per experiment
func LinePlotter(plotPath, suffix, yLabel string) Comparator {
	return func(run, _ int, names []string, ds []DataSet) {
		series := make([][]float64, len(ds))
		for i, d := range ds {
			series[i], _ = d.([]float64)
		}
		savePath := path.Join(plotPath, strconv.Itoa(run)+"_"+suffix+".png")
		if err := PlotLines(savePath, "Comparison", "Trial", yLabel, names, series); err != nil {
			klog.Errorf("saving plot %s: %v", savePath, err)
		}
	}
}
