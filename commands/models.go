package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func ModelsCommand() *cobra.Command {
	var show string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the published models and their versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := interruptContext()
			defer stop()

			models := newRegistry(cfg)
			if show != "" {
				version, payload, err := models.Latest(ctx, show)
				if err != nil {
					return err
				}
				color.New(color.Bold).Printf("%s@%d\n", show, version)
				fmt.Println(string(payload))
				return nil
			}

			names, err := models.Models(ctx)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No published models")
			}
			for _, name := range names {
				versions, err := models.Versions(ctx, name)
				if err != nil {
					return err
				}
				color.New(color.Bold).Printf("%s", name)
				fmt.Printf(": %d versions %v\n", len(versions), versions)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Print the latest weights of the model")
	return cmd
}
