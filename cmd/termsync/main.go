package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// exitStatus is set by subcommands that map an outcome to a process status
var exitStatus = exitOK

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitInfrastructure)
	}
	os.Exit(exitStatus)
}

var rootCmd = &cobra.Command{
	Use:   "termsync",
	Short: "Run shell commands in a PTY and wait for them to finish",
	Long: `termsync runs commands inside a pseudo-terminal and waits for them to
complete by watching a signal file written by a small launcher script.

Exit status of "termsync run":
  0    the command completed
  1    the command failed
  2    termsync itself could not run the command
  130  interrupted or timed out`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("termsync version %s\n", version)
	},
}
