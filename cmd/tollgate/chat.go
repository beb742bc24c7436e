package main

import (
	"os"

	"github.com/aretw0/tollgate/internal/cli"
	"github.com/aretw0/tollgate/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat with the agent in the terminal",
	Long: `Starts an interactive conversation. Tool calls stop at the approval gate:
type /approve to run them or /reject <reply> to refuse. Passing an id resumes
that conversation from the configured store (or creates it).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		app, err := buildApp(cmd, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.ChatOptions{}
		if len(args) > 0 {
			opts.ConversationID = args[0]
		}

		plain, _ := cmd.Flags().GetBool("plain")
		if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout)
			opts.Render = tui.NewRenderer()
		}

		in := cli.NewInterruptibleReader(os.Stdin, sigCtx.Done())
		return cli.RunChat(sigCtx, app.Engine, in, os.Stdout, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
}
