package commands

import (
	goflag "flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	trials     int
	saveFile   string
	runs       int
	configFile string
	envFile    string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "rps-arena",
		Short:        "Rock-paper-scissors trials between scripted, human and learning players",
		SilenceUsage: true,
	}
	rootCommand.PersistentFlags().IntVarP(&trials, "trials", "t", 0, "Number of trials to run, overrides the campaign file")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Campaign file (yaml)")
	rootCommand.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with the service addresses")

	klogFlags := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCommand.PersistentFlags().AddGoFlagSet(klogFlags)

	// adding the subcommands here
	rootCommand.AddCommand(OrchestratorCommand())
	rootCommand.AddCommand(EnvironmentCommand())
	rootCommand.AddCommand(ActorsCommand())
	rootCommand.AddCommand(TrialRunnerCommand())
	rootCommand.AddCommand(HumanCommand())
	rootCommand.AddCommand(WebCommand())
	rootCommand.AddCommand(LocalCommand())
	rootCommand.AddCommand(CompareCommand())
	rootCommand.AddCommand(ModelsCommand())
	return rootCommand
}
