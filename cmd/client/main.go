package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roomchat-client",
		Short: "Terminal client for the room chat server",
		Long: `roomchat-client talks to a roomchat-server.

  chat   join a room and exchange messages from the terminal
  rooms  list the rooms the server currently holds`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		chatCmd(),
		roomsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
