package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/zeu5/rps-arena/config"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

var (
	recordTraces bool
	trialReports bool
)

// reportConfig saves the reports of failed trials and a sample of the others unless --reports=false
func reportConfig() *types.ReportsPrintConfig {
	if !trialReports {
		return types.RepConfigOff()
	}
	return types.RepConfigStandard()
}

// runComparison runs file.Trials trials of the experiments, all of them between the players p1
// and p2, and plots their win rates, rounds and draws
func runComparison(ctx context.Context, experiments []*types.Experiment, p1, p2 string, file *config.File, parallel bool) error {
	c, err := types.NewComparison(&types.ComparisonConfig{
		Runs:         runs,
		Trials:       file.Trials,
		RecordPath:   saveFile,
		ReportConfig: reportConfig(),
		RecordTraces: recordTraces,
		Parallel:     parallel,
		Out:          os.Stdout,
	})
	if err != nil {
		return err
	}
	c.AddAnalysis("win_rate", rps.WinRateAnalyzer(p1), types.LinePlotter(saveFile, "win_rate", "Win rate of "+p1))
	c.AddAnalysis("rounds", rps.RoundsAnalyzer(p1, p2), types.LinePlotter(saveFile, "rounds", "Rounds"))
	c.AddAnalysis("draws", rps.DrawsAnalyzer(p1, p2), types.LinePlotter(saveFile, "draws", "Draws"))
	c.AddAnalysis("ticks", types.TrialLengthAnalyzer, types.LinePlotter(saveFile, "ticks", "Ticks"))
	c.AddAnalysis("reward", func() types.Analyzer { return types.CumulativeRewardAnalyzer(p1) },
		types.LinePlotter(saveFile, "reward", "Cumulative reward of "+p1))
	c.AddAnalysis("coverage", rps.CoverageAnalyzer(p1, saveFile), types.LinePlotter(saveFile, "coverage", "Transitions seen by "+p1))
	c.AddAnalysis("streaks", types.PropertyAnalyzer(saveFile,
		types.MonitorProperty("win_streak_3", rps.WinStreakMonitor(p1, 3)),
		types.MonitorProperty("lose_streak_3", rps.WinStreakMonitor(p2, 3)),
		types.MonitorProperty("target_reached", rps.TargetReachedMonitor(p1, file.EnvironmentConfig.Target())),
	), types.PropertyComparator(os.Stdout, saveFile))
	for _, e := range experiments {
		c.AddExperiment(e)
	}

	results, err := c.Run(ctx)
	printResults(results)
	return err
}

func printResults(results map[string]*types.ExperimentResult) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := results[name]
		if res == nil {
			continue
		}
		line := color.New(color.FgGreen)
		if res.Errors > 0 || res.TimedOut > 0 {
			line = color.New(color.FgYellow)
		}
		line.Printf("%s: %d/%d valid trials, %d errors, %d timed out, %d ticks\n",
			name, res.Valid, res.Trials, res.Errors, res.TimedOut, res.TotalTicks)
	}
	fmt.Println()
}

// playerNames of the two players of the trial parameters
func playerNames(params *types.TrialParameters) (string, string, error) {
	if len(params.Actors) != 2 {
		return "", "", fmt.Errorf("rock-paper-scissors needs 2 players, got %d", len(params.Actors))
	}
	return params.Actors[0].Name, params.Actors[1].Name, nil
}
