//go:build !tinygo

// Command tact runs the kernel on the simulated port: an interactive console
// demo, a live task monitor, and a wakeup-latency bench.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tact/internal/buildinfo"
)

var rootCmd = &cobra.Command{
	Use:     "tact",
	Short:   "Host-side demos and tools for the tact kernel",
	Version: buildinfo.Short(),
}

func main() {
	rootCmd.AddCommand(consoleCmd, monitorCmd, benchCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
