package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/bootstrap"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes one command. Logs go to stderr so stdout stays parseable.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type cli struct {
	stdout  io.Writer
	verbose bool
	now     func() time.Time
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, now: time.Now}
	root := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Operate the helpdesk store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "sweep",
			Short: "Run one SLA breach sweep",
			Args:  cobra.NoArgs,
			RunE:  c.sweep,
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print SLA dashboard counts",
			Args:  cobra.NoArgs,
			RunE:  c.stats,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the schema to the configured store",
			Args:  cobra.NoArgs,
			RunE:  c.migrate,
		},
		c.tokenCommand(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command, migrate bool) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if migrate {
		cfg.Postgres.RunMigrations = true
	}

	logger := zap.NewNop()
	if c.verbose {
		cfg.Logger.Output = "stderr"
		if logger, err = observability.NewLogger(cfg.Logger); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	return bootstrap.New(cmd.Context(), cfg, logger)
}

func (c *cli) sweep(cmd *cobra.Command, _ []string) error {
	app, err := c.open(cmd, false)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Sweeper.Sweep(cmd.Context(), c.now())
	if err != nil {
		return err
	}
	resp := dto.SweepResponse{
		Checked: result.Checked,
		Updated: len(result.Updates),
		Updates: make([]dto.BreachUpdateResponse, 0, len(result.Updates)),
	}
	for _, u := range result.Updates {
		resp.Updates = append(resp.Updates, dto.BreachUpdateResponse{
			ID:            u.TicketID,
			WasBreached:   u.WasBreached,
			IsNowBreached: u.IsNowBreached,
		})
	}
	return c.print(resp)
}

func (c *cli) stats(cmd *cobra.Command, _ []string) error {
	app, err := c.open(cmd, false)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Stats.Stats(cmd.Context(), c.now())
	if err != nil {
		return err
	}
	return c.print(dto.StatsResponse{
		Total:      stats.Total,
		Breached:   stats.Breached,
		AtRisk:     stats.AtRisk,
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
	})
}

func (c *cli) migrate(cmd *cobra.Command, _ []string) error {
	app, err := c.open(cmd, true)
	if err != nil {
		return err
	}
	app.Close()
	_, err = fmt.Fprintf(c.stdout, "schema applied (%s)\n", app.Config.Store.Driver)
	return err
}

func (c *cli) tokenCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.open(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			user, err := app.Users.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			token, expiresAt, err := app.Tokens.GenerateToken(user)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			return c.print(dto.AuthResponse{Token: token, ExpiresAt: expiresAt})
		},
	}
	cmd.Flags().StringVar(&userID, "user", domain.DemoUserID, "user id the token identifies")
	return cmd
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
