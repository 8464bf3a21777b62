// Package cmd provides the command-line interface of pgtrace.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pgtrace",
	Short: "pgtrace runs user programs on a simulated Sv39 machine.",
	Long: `pgtrace runs user programs on a simulated Sv39 machine and ` +
		`prints the page table of the process as pages are demand ` +
		`allocated. It can also report which pages were accessed or ` +
		`modified, record every event into an SQLite database, and ` +
		`serve the state of the processes over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String(flagRecord, "",
		"Record events into an SQLite file or a clickhouse:// URL (env "+envRecord+")")
	rootCmd.PersistentFlags().Bool(flagLog, false,
		"Log every process event to stderr (env "+envLog+")")
	rootCmd.PersistentFlags().Uint64(flagFrames, defaultNumFrames,
		"Number of physical frames of the machine (env "+envFrames+")")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
