package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zeu5/rps-arena/config"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/transport"
	"github.com/zeu5/rps-arena/types"
	"github.com/zeu5/rps-arena/webclient"
)

var (
	humanName string
	remote    bool
)

// humanSetup resolves the trials service and the parameters with humanName joining as a client
func humanSetup(ctx context.Context) (*config.Config, webclient.Trials, *types.TrialParameters, func(), error) {
	cfg, file, err := loadSettings()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if humanName == "" && len(file.Trial.Actors) > 0 {
		humanName = file.Trial.Actors[0].Name
	}
	found := false
	for i, a := range file.Trial.Actors {
		if a.Name == humanName {
			file.Trial.Actors[i].Endpoint = types.ClientEndpoint
			file.Trial.Actors[i].Implementation = policies.HumanAgent
			found = true
		}
	}
	if !found {
		return nil, nil, nil, nil, errors.Errorf("no player named %s", humanName)
	}
	// humans take their time
	file.Trial.MaxInactivity = 0

	if remote {
		controller, err := transport.NewController(cfg.OrchestratorEndpoint())
		if err != nil {
			return nil, nil, nil, nil, err
		}
		params, err := file.TrialParameters(cfg)
		return cfg, controller, params, func() {}, err
	}
	p, err := newPlayers(ctx, file, newRegistry(cfg))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	o := localOrchestrator(cfg, p.context, nil)
	params, err := file.Local().TrialParameters(nil)
	return cfg, o, params, func() { shutdown(o) }, err
}

func HumanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "human",
		Short: "Play against a player from the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptContext()
			defer stop()
			_, service, params, cleanup, err := humanSetup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			games := trials
			if games < 1 {
				games = 1
			}
			for t := 0; t < games; t++ {
				trialID, err := service.StartTrial(ctx, params, "")
				if err != nil {
					return err
				}
				fmt.Printf("Trial '%s' started\n", trialID)
				if err := service.JoinTrial(ctx, trialID, humanName, policies.Human(os.Stdin, os.Stdout)); err != nil {
					return err
				}
				fmt.Printf("Trial '%s' ended\n", trialID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&humanName, "as", "", "Name of the player to play, the first one by default")
	cmd.Flags().BoolVar(&remote, "remote", false, "Play through the orchestrator service")
	return cmd
}

func WebCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the web client",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptContext()
			defer stop()
			cfg, service, params, cleanup, err := humanSetup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			addr := config.Address(cfg.WebClientPort)
			s, err := webclient.NewServer(ctx, addr, service, params, humanName)
			if err != nil {
				return err
			}
			fmt.Printf("Web client starting on %s...\n", addr)
			return s.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&humanName, "as", "", "Name of the player to play, the first one by default")
	cmd.Flags().BoolVar(&remote, "remote", false, "Play through the orchestrator service")
	return cmd
}
