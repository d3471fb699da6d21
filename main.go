package main

import (
	"os"

	"github.com/zeu5/rps-arena/commands"
	"k8s.io/klog/v2"
)

// main entry point to the services and the campaigns
func main() {
	defer klog.Flush()
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
