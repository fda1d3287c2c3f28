package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand()
	return root.Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "chime",
		Short: "Discord chat bot that decides for itself when to join the conversation",
		Long: strings.TrimSpace(`chime is a Discord bot with switchable personalities.

It watches a designated channel and replies probabilistically based on message
content, keywords, and recent conversation, with cooldowns so it never floods.
Mentions always get a reply. Use the CLI to run the bot, chat locally, or
inspect configuration.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newRunCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the Discord bot",
		Long:    "Start the Discord channel, response engine, and maintenance jobs.",
		Example: "  chime run --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot locally without Discord",
		Long:  "Run an interactive console session. Prefix commands work here too.",
		Example: strings.Join([]string{
			"  chime chat",
			"  chime chat --debug",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and readiness",
		Example: "  chime status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  chime version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
