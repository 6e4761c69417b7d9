package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sceneforge/internal/agent"
)

func newRefineCmd(configPath *string) *cobra.Command {
	var (
		codePath   string
		outPath    string
		sessionID  string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "refine \"instruction\"",
		Short: "Run one refinement turn from the command line",
		Long: `refine runs a single refinement turn against the configured collaborators
and prints the resulting code. With --file the current code is read from disk
and the refined code written back (or to --out when given).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := strings.TrimSpace(args[0])
			if instruction == "" {
				return fmt.Errorf("instruction must not be empty")
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			container, err := buildContainer(cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}

			var code string
			if codePath != "" {
				data, err := os.ReadFile(codePath)
				if err != nil {
					return fmt.Errorf("read code file: %w", err)
				}
				code = string(data)
			}

			result, err := container.Engine.Refine(cmd.Context(), agent.Request{
				SessionID:     sessionID,
				Instruction:   instruction,
				CurrentCode:   code,
				MaxIterations: iterations,
			})
			if err != nil {
				return err
			}

			target := outPath
			if target == "" {
				target = codePath
			}
			if target != "" {
				if err := os.WriteFile(target, []byte(result.Code), 0o644); err != nil {
					return fmt.Errorf("write refined code: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refined code written to %s (%d iteration(s))\n",
					target, result.Iterations)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), result.Code)
			}
			for _, url := range result.AssetURLs {
				fmt.Fprintf(cmd.OutOrStdout(), "asset: %s\n", url)
			}
			if result.Suggestion != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "suggestion: %s\n", result.Suggestion)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&codePath, "file", "f", "", "code file to refine in place")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write refined code here instead of back to --file")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "cli", "session id scoping memory windows")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "override the iteration budget for this turn")
	return cmd
}
