package types

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/util"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// TrialRunner runs one trial to completion and returns its trace
// Implemented by the in-process orchestrator and by the remote controller
type TrialRunner interface {
	RunTrial(ctx context.Context, params *TrialParameters, report *TrialReport) (*Trace, error)
}

type experimentRunConfig struct {
	CurrentRun int
	Trials     int
	Analyzers  []Analyzer
	Timeout    time.Duration

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	RecordTraces       bool
	ReportsPrintConfig *ReportsPrintConfig
	ReportSavePath     string

	Output            *ParallelOutput
	LongestExpNameLen int
}

// Experiment runs the same matchup (trial parameters) several times
type Experiment struct {
	Name   string
	params *TrialParameters
	runner TrialRunner
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, params *TrialParameters, runner TrialRunner) *Experiment {
	return &Experiment{
		Name:   name,
		params: params,
		runner: runner,
	}
}

// ExperimentResult counts the outcome of the trials of one run
type ExperimentResult struct {
	Trials      int
	Valid       int
	Errors      int
	TimedOut    int
	TotalTicks  uint64
	MeanTickLat time.Duration
}

func (e *Experiment) recordTrace(rConfig *experimentRunConfig, trace *Trace) {
	tracesFile := path.Join(rConfig.ReportSavePath, "traces", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".jsonl")
	if err := util.AppendJSONLine(tracesFile, trace); err != nil {
		klog.Errorf("recording trace of %s: %v", e.Name, err)
	}
}

func (e *Experiment) recordReport(rConfig *experimentRunConfig, report *TrialReport, failed bool) {
	cfg := rConfig.ReportsPrintConfig
	if cfg == nil {
		return
	}
	if !(failed && cfg.PrintIfError) && !(rand.Float32() < cfg.Sampling) {
		return
	}
	reportPath := path.Join(rConfig.ReportSavePath, "trialReports", e.Name+"_run"+strconv.Itoa(rConfig.CurrentRun)+"_"+report.TrialID+".txt")
	content := make([]string, 0)
	if cfg.PrintStd {
		content = append(content, report.StringPerType())
	}
	if cfg.PrintTimeline {
		content = append(content, report.StringTimeline())
	}
	if len(content) == 0 {
		return
	}
	if err := util.WriteToFile(reportPath, content...); err != nil {
		klog.Errorf("recording report of %s: %v", e.Name, err)
	}
}

func (e *Experiment) status(rConfig *experimentRunConfig, res *ExperimentResult) string {
	padding := len(strconv.Itoa(rConfig.Trials))
	validPct := float32(0)
	if res.Trials > 0 {
		validPct = float32(res.Valid) / float32(res.Trials) * 100
	}
	return fmt.Sprintf("Exp:%*s, Trials:%*d/%d, Valid:%*d [%5.1f%%], TOut:%*d, Err:%*d || Ticks:%d, TickLat:%s",
		rConfig.LongestExpNameLen, e.Name, padding, res.Trials, rConfig.Trials, padding, res.Valid, validPct,
		padding, res.TimedOut, padding, res.Errors, res.TotalTicks, res.MeanTickLat)
}

// Run the experiment for the configured number of trials, feeding every trace to the analyzers
func (e *Experiment) Run(ctx context.Context, rConfig *experimentRunConfig) (*ExperimentResult, error) {
	res := &ExperimentResult{}
	consecutiveErrors := 0
	var tickLatTotal time.Duration

	for trial := 0; trial < rConfig.Trials; trial++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		trialCtx, cancel := ctx, context.CancelFunc(func() {})
		if rConfig.Timeout > 0 {
			trialCtx, cancel = context.WithTimeout(ctx, rConfig.Timeout)
		}
		params := *e.params
		report := NewTrialReport("", e.Name)
		trace, err := e.runner.RunTrial(trialCtx, &params, report)
		timedOut := errors.Is(trialCtx.Err(), context.DeadlineExceeded)
		cancel()
		res.Trials += 1

		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			consecutiveErrors += 1
			if timedOut {
				res.TimedOut += 1
			} else {
				res.Errors += 1
			}
			klog.V(1).Infof("experiment %s trial %d failed: %v", e.Name, trial, err)
		} else {
			consecutiveErrors = 0
			res.Valid += 1
			res.TotalTicks += uint64(trace.Len())
			tickLatTotal += report.MeanTime("tick_latency")
			res.MeanTickLat = tickLatTotal / time.Duration(res.Valid)
			if rConfig.RecordTraces {
				e.recordTrace(rConfig, trace)
			}
			for _, a := range rConfig.Analyzers {
				a.Analyze(rConfig.CurrentRun, trial, e.Name, trace)
			}
		}
		e.recordReport(rConfig, report, err != nil)

		if rConfig.Output != nil {
			rConfig.Output.TrySet(e.status(rConfig, res))
		}
		if rConfig.ConsecutiveErrorsAbort > 0 && consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
			return res, errors.Errorf("aborting experiment %s: %d consecutive errors", e.Name, consecutiveErrors)
		}
	}
	if rConfig.Output != nil {
		rConfig.Output.Set(e.status(rConfig, res))
	}
	return res, nil
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// Run, trial index, experiment, trace
	Analyze(int, int, string, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// AnalyzerConstructor creates a fresh analyzer per experiment, experiments may run concurrently
type AnalyzerConstructor func() Analyzer

// Comparator differentiates between different datasets with associated names
// run, trials, experiment names, datasets
type Comparator func(int, int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(_, _ int, _ []string, _ []DataSet) {}
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs   int // number of runs
	Trials int // number of trials per experiment and run

	RecordPath   string              // path to store the results
	ReportConfig *ReportsPrintConfig // configuration for the trial reports
	Timeout      time.Duration       // timeout for each trial

	ConsecutiveErrorsAbort int

	RecordTraces bool
	// Parallel runs the experiments of a run concurrently
	Parallel bool
	// Out receives the live progress, nothing is printed when nil
	Out io.Writer
}

func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["trials"] = cfg.Trials
	out["record_traces"] = cfg.RecordTraces
	out["parallel"] = cfg.Parallel
	out["report_config"] = cfg.ReportConfig
	if cfg.Timeout != 0 {
		out["timeout"] = cfg.Timeout.String()
	}

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	sort.Strings(analyzers)
	out["analyzers"] = analyzers

	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteToFile(path.Join(cfg.RecordPath, "comparison_config.json"), string(bs))
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]AnalyzerConstructor
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
}

// NewComparison creates a comparison instance, clearing the record path
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	if _, err := os.Stat(config.RecordPath); err == nil {
		if err := util.RemoveContents(config.RecordPath); err != nil {
			return nil, errors.Wrap(err, "cleaning record path")
		}
	}
	folders := []string{""}
	if config.RecordTraces {
		folders = append(folders, "traces")
	}
	if config.ReportConfig != nil {
		folders = append(folders, "trialReports")
	}
	for _, f := range folders {
		if err := util.EnsureDir(path.Join(config.RecordPath, f)); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]AnalyzerConstructor),
		comparators: make(map[string]Comparator),
		cConfig:     config,
	}, nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer AnalyzerConstructor, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// Run the comparison, returns the results of the last run per experiment
func (c *Comparison) Run(ctx context.Context) (map[string]*ExperimentResult, error) {
	if err := c.recordConfig(); err != nil {
		return nil, errors.Wrap(err, "recording comparison config")
	}

	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	results := make(map[string]*ExperimentResult)
	for run := 0; run < c.cConfig.Runs; run++ {
		if c.cConfig.Out != nil {
			fmt.Fprintf(c.cConfig.Out, "Run %d\n", run+1)
		}
		outputs := make([]*ParallelOutput, len(c.Experiments))
		analyzers := make([]map[string]Analyzer, len(c.Experiments))
		for i, e := range c.Experiments {
			outputs[i] = NewParallelOutput(fmt.Sprintf("Exp:%*s, Pending", longestNameLen, e.Name))
			analyzers[i] = make(map[string]Analyzer)
			for name, constructor := range c.analyzers {
				analyzers[i][name] = constructor()
			}
		}

		var printer *TerminalPrinter
		if c.cConfig.Out != nil {
			printer = NewTerminalPrinter(c.cConfig.Out, outputs, 500*time.Millisecond)
			printer.Start(ctx)
		}

		runResults := make([]*ExperimentResult, len(c.Experiments))
		runExperiment := func(i int) error {
			rCfg := c.prepareRunConfig(run, longestNameLen, outputs[i], analyzers[i])
			res, err := c.Experiments[i].Run(ctx, rCfg)
			runResults[i] = res
			return err
		}

		var err error
		if c.cConfig.Parallel {
			g := new(errgroup.Group)
			for i := range c.Experiments {
				i := i
				g.Go(func() error { return runExperiment(i) })
			}
			err = g.Wait()
		} else {
			for i := range c.Experiments {
				if err = runExperiment(i); err != nil {
					break
				}
			}
		}
		if printer != nil {
			printer.Stop()
		}
		if err != nil {
			return results, err
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			names[i] = e.Name
			results[e.Name] = runResults[i]
		}
		for name, comp := range c.comparators {
			datasets := make([]DataSet, len(c.Experiments))
			for i := range c.Experiments {
				datasets[i] = analyzers[i][name].DataSet()
			}
			comp(run, c.cConfig.Trials, names, datasets)
		}
	}
	return results, nil
}

func (c *Comparison) prepareRunConfig(run, longestExpNameLen int, output *ParallelOutput, analyzers map[string]Analyzer) *experimentRunConfig {
	rCfg := &experimentRunConfig{
		CurrentRun:             run,
		Trials:                 c.cConfig.Trials,
		Analyzers:              make([]Analyzer, 0, len(analyzers)),
		Timeout:                c.cConfig.Timeout,
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		RecordTraces:           c.cConfig.RecordTraces,
		ReportsPrintConfig:     c.cConfig.ReportConfig,
		ReportSavePath:         c.cConfig.RecordPath,
		Output:                 output,
		LongestExpNameLen:      longestExpNameLen,
	}
	if rCfg.ConsecutiveErrorsAbort == 0 {
		rCfg.ConsecutiveErrorsAbort = 10
	}
	for _, a := range analyzers {
		rCfg.Analyzers = append(rCfg.Analyzers, a)
	}
	return rCfg
}
