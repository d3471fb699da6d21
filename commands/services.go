package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/rps-arena/config"
	"github.com/zeu5/rps-arena/transport"
	"k8s.io/klog/v2"
)

func OrchestratorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Serve the orchestrator API",
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
			store, err := newDatastore(cfg)
			if err != nil {
				return err
			}
			o := localOrchestrator(cfg, p.context, store)
			defer shutdown(o)

			addr := config.Address(cfg.OrchestratorPort)
			fmt.Printf("Orchestrator starting on %s...\n", addr)
			return transport.NewOrchestratorServer(ctx, addr, o).ListenAndServe()
		},
	}
	return cmd
}

func EnvironmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "environment",
		Short: "Serve the rock-paper-scissors environment",
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
			addr := config.Address(cfg.EnvironmentPort)
			fmt.Printf("Environment service starting on %s...\n", addr)
			return transport.NewServer(ctx, addr, p.context).ListenAndServe()
		},
	}
}

func ActorsCommand() *cobra.Command {
	var learning bool
	cmd := &cobra.Command{
		Use:   "actors",
		Short: "Serve the players",
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
			port := cfg.ActorsPort
			if learning {
				port = cfg.DQNAgentPort
			}
			addr := config.Address(port)
			fmt.Printf("Actor service starting on %s...\n", addr)
			klog.V(1).Infof("serving %v", p.context.ActorImpls())
			return transport.NewServer(ctx, addr, p.context).ListenAndServe()
		},
	}
	cmd.Flags().BoolVar(&learning, "learning", false, "Serve on the learning players port (DQN_AGENT_PORT)")
	return cmd
}
