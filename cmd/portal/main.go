package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "ENARM portal web front",
		Long: `portal serves the ENARM exam screens behind the route guard.

Every screen navigation is checked against the browser context's session
before it renders; denied navigations are sent to the matching login screen
and resumed after a successful login.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		routesCmd(),
		checkCmd(),
		waitDBCmd(),
	)
	return rootCmd
}
