// Command hemoprofile evaluates patient observations and intervention
// projections from the command line, using the same classifier and tuning
// files as the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hemoprofile",
		Short:         "Bedside hemodynamic profile classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("tuning", "", "tuning file (YAML or JSON); defaults to the built-in table")
	rootCmd.PersistentFlags().Bool("legacy", false, "derive vitals without blood pressure validation")

	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(tuningCmd())
	return rootCmd
}
