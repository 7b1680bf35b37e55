package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stridefit/coach-api/cmd/admin/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "coach-admin",
		Short: "Administration tool for the coach API",
		Long:  "CLI tool for inspecting safety audit logs and checking service dependencies",
	}

	rootCmd.AddCommand(commands.NewViolationsCmd())
	rootCmd.AddCommand(commands.NewTestCmd())
	rootCmd.AddCommand(commands.NewExpireSessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
