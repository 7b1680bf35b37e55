// Package commands holds the subcommands of the coach-admin CLI.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridefit/coach-api/internal/config"
	"github.com/stridefit/coach-api/internal/database"
)

// NewViolationsCmd creates the violations command
func NewViolationsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "violations",
		Short: "List recent safety policy violations",
		Long:  "List the most recent safety policy violations recorded in the audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := context.Background()
			db, err := database.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			auditRepo := database.NewAuditRepository(db)
			violations, err := auditRepo.ListRecentViolations(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list violations: %w", err)
			}

			if len(violations) == 0 {
				fmt.Println("No policy violations recorded")
				return nil
			}

			for _, v := range violations {
				fmt.Printf("%s  %-24s severity=%-8s action=%-8s user=%s\n",
					v.CreatedAt.Format(time.RFC3339),
					v.ViolationType,
					v.Severity,
					v.ActionTaken,
					v.UserID,
				)
			}
			fmt.Printf("\n%d violation(s)\n", len(violations))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of violations to list")
	return cmd
}
