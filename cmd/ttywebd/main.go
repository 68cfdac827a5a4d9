// ttywebd serves shell sessions over WebSocket, multiplexing a pty per
// session and letting multiple browser or CLI clients attach, detach, and
// reattach to the same running shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ttywebd",
	Short: "Web-accessible terminal multiplexer daemon",
	Long: `ttywebd spawns shells behind pseudoterminals and exposes them over
WebSocket. Clients attach to a session, receive its scrollback, and then see
live output and send input; detaching leaves the shell running so a later
client can reattach to the same session.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ttywebd: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().String("addr", "", "address to listen on (env: TTYWEBD_ADDR)")
	serveCmd.PersistentFlags().Int("port", 0, "port to listen on (env: TTYWEBD_PORT)")
	serveCmd.PersistentFlags().String("shell", "", "shell binary to spawn for new sessions (env: TTYWEBD_SHELL)")
	serveCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: TTYWEBD_LOG_LEVEL)")
	serveCmd.PersistentFlags().Duration("reaper-interval", 0, "how often to sweep for orphaned sessions (env: TTYWEBD_REAPER_INTERVAL)")
	serveCmd.PersistentFlags().Duration("orphan-timeout", 0, "how long a session may sit with no attached client before it is reaped (env: TTYWEBD_ORPHAN_TIMEOUT)")
	serveCmd.PersistentFlags().String("config", "", "path to a YAML config file")
}
