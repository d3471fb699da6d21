package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/ppo"
	"github.com/zeu5/rps-arena/types"
)

func CompareCommand() *cobra.Command {
	var players []string
	var opponent string
	var parallel bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare players against the same opponent",
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

			base, err := file.Local().TrialParameters(nil)
			if err != nil {
				return err
			}
			p1, p2, err := playerNames(base)
			if err != nil {
				return err
			}
			experiments := make([]*types.Experiment, 0, len(players))
			for _, player := range players {
				params := *base
				params.Actors = []types.ActorParameters{base.Actors[0], base.Actors[1]}
				params.Actors[0].Implementation = strings.TrimSpace(player)
				params.Actors[1].Implementation = opponent
				experiments = append(experiments, types.NewExperiment(params.Actors[0].Implementation, &params, o))
			}
			return runComparison(ctx, experiments, p1, p2, file, parallel)
		},
	}
	cmd.Flags().StringSliceVar(&players, "players",
		[]string{policies.RandomAgent, policies.HeuristicAgent, policies.SoftmaxAgent, dqn.ImplName, ppo.ImplName},
		"Implementations of the first player")
	cmd.Flags().StringVar(&opponent, "opponent", policies.HeuristicAgent, "Implementation of the second player")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run the experiments concurrently")
	cmd.Flags().BoolVar(&recordTraces, "record", false, "Record the traces of the trials")
	cmd.Flags().BoolVar(&trialReports, "reports", true, "Save the reports of failed and sampled trials")
	return cmd
}
