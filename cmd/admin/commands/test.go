package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/stridefit/coach-api/internal/config"
	"github.com/stridefit/coach-api/internal/database"
	"github.com/stridefit/coach-api/internal/queue"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test service dependencies",
		Long:  "Check connectivity to the database, Redis, RabbitMQ, the model provider, and the JWKS endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			failed := false

			// Database
			db, err := database.New(ctx, cfg.DatabaseURL)
			if err != nil {
				fmt.Printf("✗ database: %v\n", err)
				failed = true
			} else {
				fmt.Println("✓ database reachable")
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}

			// Redis
			redisOpts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				fmt.Printf("✗ redis: %v\n", err)
				failed = true
			} else {
				client := redis.NewClient(redisOpts)
				if err := client.Ping(ctx).Err(); err != nil {
					fmt.Printf("✗ redis: %v\n", err)
					failed = true
				} else {
					fmt.Println("✓ redis reachable")
				}
				_ = client.Close()
			}

			// RabbitMQ (optional for the API, required for the worker)
			if cfg.RabbitMQURL == "" {
				fmt.Println("- rabbitmq not configured, audit writes go direct to Postgres")
			} else {
				q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
				if err != nil {
					fmt.Printf("✗ rabbitmq: %v\n", err)
					failed = true
				} else {
					fmt.Println("✓ rabbitmq reachable")
					if err := q.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close rabbitmq: %v\n", err)
					}
				}
			}

			// Model provider
			if cfg.OpenAIKey == "" {
				fmt.Println("✗ model provider: OPENAI_API_KEY not configured")
				failed = true
			} else {
				opts := []option.RequestOption{
					option.WithAPIKey(cfg.OpenAIKey),
					option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
				}
				if cfg.AIBaseURL != "" {
					opts = append(opts, option.WithBaseURL(cfg.AIBaseURL))
				}
				client := openai.NewClient(opts...)
				if _, err := client.Models.List(ctx); err != nil {
					fmt.Printf("✗ model provider: %v\n", err)
					failed = true
				} else {
					fmt.Println("✓ model provider reachable")
				}
			}

			// JWKS endpoint
			httpClient := &http.Client{Timeout: 10 * time.Second}
			resp, err := httpClient.Get(cfg.JWKSURL)
			if err != nil {
				fmt.Printf("✗ jwks: %v\n", err)
				failed = true
			} else {
				if resp.StatusCode != http.StatusOK {
					fmt.Printf("✗ jwks: endpoint returned status %d\n", resp.StatusCode)
					failed = true
				} else {
					fmt.Println("✓ jwks endpoint reachable")
				}
				if err := resp.Body.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
				}
			}

			if failed {
				return fmt.Errorf("one or more dependency checks failed")
			}
			fmt.Println("\nAll dependency checks passed")
			return nil
		},
	}

	return cmd
}
