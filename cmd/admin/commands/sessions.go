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

// NewExpireSessionsCmd creates the expire-sessions command
func NewExpireSessionsCmd() *cobra.Command {
	var idleLimit time.Duration

	cmd := &cobra.Command{
		Use:   "expire-sessions",
		Short: "Expire idle coach sessions now",
		Long:  "Run one idle-session expiry sweep immediately instead of waiting for the worker's next pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if idleLimit <= 0 {
				idleLimit = cfg.SessionIdleLimit
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

			sessionRepo := database.NewSessionRepository(db)
			expired, err := sessionRepo.ExpireIdle(ctx, idleLimit)
			if err != nil {
				return fmt.Errorf("failed to expire sessions: %w", err)
			}

			fmt.Printf("Expired %d session(s) idle longer than %s\n", expired, idleLimit)
			return nil
		},
	}

	cmd.Flags().DurationVar(&idleLimit, "idle-limit", 0, "Idle duration after which a session expires (defaults to SESSION_IDLE_LIMIT)")
	return cmd
}
