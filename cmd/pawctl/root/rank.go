package root

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pawtap/server/internal/repository"
)

func newRankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank <telegram-id>",
		Short: "Show a player's leaderboard position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			telegramID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid telegram id %q", args[0])
			}

			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			user, err := repository.NewUserRepository().FindByTelegramID(ctx, pool, telegramID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("no player with telegram id %d", telegramID)
			}

			entry, err := repository.NewRankingRepository().UserRank(ctx, pool, user.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if entry == nil {
				fmt.Fprintf(out, "%s has no character yet\n", user.Username)
				return nil
			}
			fmt.Fprintf(out, "#%d  %s  coins=%d  level=%d\n", entry.Rank, entry.Username, entry.Coins, entry.Level)
			return nil
		},
	}
}
