package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
	Long:    `List, inspect, and remove conversations in the configured checkpoint store.`,
}

var conversationLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Engine.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing conversations: %w", err)
		}

		if len(ids) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		fmt.Println("Conversations:")
		for _, id := range ids {
			fmt.Println("- " + id)
		}
		return nil
	},
}

var conversationInspectCmd = &cobra.Command{
	Use:   "inspect <conversation-id>",
	Short: "Print the checkpoint of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		cp, err := app.Engine.Checkpoint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading conversation '%s': %w", args[0], err)
		}

		format, _ := cmd.Flags().GetString("output")
		switch format {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cp)
		case "json":
			data, err := json.MarshalIndent(cp, "", "  ")
			if err != nil {
				return fmt.Errorf("error marshaling checkpoint: %w", err)
			}
			fmt.Println(string(data))
			return nil
		default:
			return fmt.Errorf("unknown output format %q (use json or yaml)", format)
		}
	},
}

var conversationRmCmd = &cobra.Command{
	Use:   "rm <conversation-id>...",
	Short: "Remove one or more conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, newLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		var failed int
		for _, id := range args {
			if err := app.Engine.Delete(cmd.Context(), id); err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Removed conversation '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d conversations could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationLsCmd)
	conversationCmd.AddCommand(conversationInspectCmd)
	conversationCmd.AddCommand(conversationRmCmd)

	conversationInspectCmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
}
