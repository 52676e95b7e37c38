package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pawtap/server/internal/infra"
)

var rootCmd = &cobra.Command{
	Use:           "pawctl",
	Short:         "Operator tooling for the pawtap game server",
	Long:          "pawctl runs database migrations, seeds the item and phrase catalog, and inspects player ranks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute builds the command tree and runs it.
func Execute() {
	rootCmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newRankCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		stop()
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// connect loads the environment config and opens a pool. Commands that only touch
// the database skip Validate, which guards secrets the CLI never uses.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	return infra.NewPostgresPool(ctx, cfg)
}
