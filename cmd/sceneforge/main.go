package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/logging"
)

// Version is stamped by the build; "dev" when built from source directly.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "sceneforge",
		Short: "Iteratively refines generated scene code toward a visual target",
		Long: `sceneforge orchestrates a vision model, a code-fix model, an asynchronous
3D-asset generation API and a browser-rendered preview to iteratively refine
generated Three.js scene code until it matches the requested scene.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a sceneforge.yaml config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newRefineCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sceneforge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sceneforge %s\n", Version)
		},
	}
}

// loadConfig reads and validates the configuration shared by every command.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Log.Level))
	return cfg, nil
}
