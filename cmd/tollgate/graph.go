package main

import (
	"fmt"

	"github.com/aretw0/tollgate/internal/presentation/graph"
	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [conversation-id]",
	Short: "Export the step graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the step graph. With a conversation id,
the visited steps and the current step are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Print(graph.GenerateMermaid(runtime.Edges(), nil))
			return nil
		}

		app, err := buildApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		cp, err := app.Engine.Checkpoint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading conversation '%s': %w", args[0], err)
		}
		fmt.Print(graph.GenerateMermaid(runtime.Edges(), graph.OverlayFor(cp)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
