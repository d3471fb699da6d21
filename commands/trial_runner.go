package commands

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/rps-arena/transport"
	"github.com/zeu5/rps-arena/types"
)

var datalog bool

func TrialRunnerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial-runner",
		Short: "Run the campaign trials on the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, file, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := interruptContext()
			defer stop()

			controller, err := transport.NewController(cfg.OrchestratorEndpoint())
			if err != nil {
				return err
			}
			params, err := file.TrialParameters(cfg)
			if err != nil {
				return err
			}
			params.DatalogEnabled = datalog
			p1, p2, err := playerNames(params)
			if err != nil {
				return err
			}
			fmt.Print(params.Printable())
			experiment := types.NewExperiment("trial-runner", params, controller)
			return runComparison(ctx, []*types.Experiment{experiment}, p1, p2, file, false)
		},
	}
	cmd.Flags().BoolVar(&datalog, "datalog", false, "Store the samples of the trials")
	cmd.Flags().BoolVar(&recordTraces, "record", false, "Record the traces of the trials")
	cmd.Flags().BoolVar(&trialReports, "reports", true, "Save the reports of failed and sampled trials")
	return cmd
}

func LocalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run the campaign with every participant in process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, file, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := interruptContext()
			defer stop()

			p, err := newPlayers(ctx, file, newRegistry(cfg))
			if err != nil {
				return err
			}
			o := localOrchestrator(cfg, p.context, nil)
			defer shutdown(o)

			params, err := file.Local().TrialParameters(nil)
			if err != nil {
				return err
			}
			p1, p2, err := playerNames(params)
			if err != nil {
				return err
			}
			fmt.Print(params.Printable())
			experiment := types.NewExperiment("local", params, o)
			if err := runComparison(ctx, []*types.Experiment{experiment}, p1, p2, file, false); err != nil {
				return err
			}
			return p.softmax.QTable.Record(path.Join(saveFile, "softmax_qtable.json"))
		},
	}
	cmd.Flags().BoolVar(&recordTraces, "record", false, "Record the traces of the trials")
	cmd.Flags().BoolVar(&trialReports, "reports", true, "Save the reports of failed and sampled trials")
	return cmd
}
