// ttyweb-client is a reference terminal client for ttywebd: it puts the
// local terminal into raw mode, dials a session over WebSocket, and pipes
// stdin/stdout through the wire protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ttyweb-client",
	Short: "Reference terminal client for ttywebd",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ttyweb-client: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().String("session", "", "existing session id to reattach to")
}
