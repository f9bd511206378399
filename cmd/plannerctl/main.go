// Command plannerctl runs maintenance tasks against the planner database:
// schema migrations, a connectivity check, dev tokens and the MCP stdio server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"
	"github.com/urfave/cli/v3"

	"github.com/tabiplan/planner/internal/config"
	"github.com/tabiplan/planner/internal/mcpserver"
	"github.com/tabiplan/planner/internal/middleware"
	"github.com/tabiplan/planner/internal/repo"
	"github.com/tabiplan/planner/internal/service"
	"github.com/tabiplan/planner/migrations"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "plannerctl",
		Usage:   "Maintenance commands for the trip planner",
		Version: version,
		Commands: []*cli.Command{
			migrateCommand(),
			{
				Name:   "ping",
				Usage:  "Check that the database is reachable and migrated",
				Action: ping,
			},
			tokenCommand(),
			{
				Name:   "mcp",
				Usage:  "Serve read-only planner tools over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("plannerctl error", "error", err)
		os.Exit(1)
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or inspect schema migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withProvider(func(ctx context.Context, p *goose.Provider) error {
					results, err := p.Up(ctx)
					if err != nil {
						return fmt.Errorf("migrate up: %w", err)
					}
					for _, r := range results {
						fmt.Printf("applied %d %s (%s)\n", r.Source.Version, r.Source.Path, r.Duration)
					}
					if len(results) == 0 {
						fmt.Println("no pending migrations")
					}
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withProvider(func(ctx context.Context, p *goose.Provider) error {
					r, err := p.Down(ctx)
					if err != nil {
						return fmt.Errorf("migrate down: %w", err)
					}
					fmt.Printf("rolled back %d %s\n", r.Source.Version, r.Source.Path)
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "List migrations and whether they are applied",
				Action: withProvider(func(ctx context.Context, p *goose.Provider) error {
					statuses, err := p.Status(ctx)
					if err != nil {
						return fmt.Errorf("migrate status: %w", err)
					}
					for _, s := range statuses {
						applied := "pending"
						if s.State == goose.StateApplied {
							applied = s.AppliedAt.Format(time.RFC3339)
						}
						fmt.Printf("%5d  %-45s %s\n", s.Source.Version, s.Source.Path, applied)
					}
					return nil
				}),
			},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for an owner (AUTH_MODE=jwt)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HMAC secret the API verifies tokens with",
				Sources: cli.EnvVars("JWT_SECRET"),
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Owner UUID placed in the subject claim",
				Value: config.DefaultOwnerID.String(),
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			secret := cmd.String("secret")
			if len(secret) < 16 {
				return fmt.Errorf("secret must be at least 16 characters")
			}
			owner, err := uuid.Parse(cmd.String("owner"))
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			tok, err := middleware.IssueToken([]byte(secret), owner, cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
}

func ping(ctx context.Context, _ *cli.Command) error {
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	boxes := service.NewPlanBoxService(repo.NewPlanBoxRepo(pool), nil, cfg.Planner.SnapMinutes, stderrLogger())
	if err := boxes.Health(ctx); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger := stderrLogger()
	tripRepo := repo.NewTripRepo(pool)
	boxRepo := repo.NewPlanBoxRepo(pool)
	trips := service.NewTripService(tripRepo, boxRepo, nil, cfg.Planner.DefaultCurrency)
	boxes := service.NewPlanBoxService(boxRepo, nil, cfg.Planner.SnapMinutes, logger)

	logger.Info("mcp server starting", "owner", cfg.Auth.DefaultOwnerID)
	return mcpserver.New(trips, boxes, cfg.Auth.DefaultOwnerID, cmd.Root().Version).ServeStdio()
}

func withProvider(fn func(context.Context, *goose.Provider) error) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		_, pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()

		p, err := migrations.NewProvider(db)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		return fn(ctx, p)
	}
}

func connect(ctx context.Context) (config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("configuration error: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return config.Config{}, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, pool, nil
}

// stderrLogger keeps stdout free for command output and the MCP protocol.
func stderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
