package root

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/infra"
	"github.com/pawtap/server/internal/repository"
	"github.com/pawtap/server/internal/service"
)

type seedOptions struct {
	file          string
	adminEmail    string
	adminPassword string
	adminName     string
	adminRole     string
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load store items and phrases from the YAML catalog",
		Long: "seed upserts every item (keyed by slug) and phrase from the catalog file.\n" +
			"With --admin-email it also creates a back-office account.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "config/game.yaml", "catalog file")
	cmd.Flags().StringVar(&opts.adminEmail, "admin-email", "", "create an admin with this email")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "password for the new admin")
	cmd.Flags().StringVar(&opts.adminName, "admin-name", "", "display name for the new admin")
	cmd.Flags().StringVar(&opts.adminRole, "admin-role", auth.RoleOwner, "role for the new admin")
	return cmd
}

func runSeed(ctx context.Context, out io.Writer, opts seedOptions) error {
	catalog, err := infra.LoadCatalog(opts.file)
	if err != nil {
		return err
	}

	pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	items := repository.NewItemRepository()
	for i := range catalog.Items {
		if err := items.Upsert(ctx, pool, &catalog.Items[i]); err != nil {
			return fmt.Errorf("seed item %s: %w", catalog.Items[i].Slug, err)
		}
	}

	phrases := repository.NewPhraseRepository()
	for i := range catalog.Phrases {
		if err := phrases.Upsert(ctx, pool, &catalog.Phrases[i]); err != nil {
			return fmt.Errorf("seed phrase %d: %w", i, err)
		}
	}
	fmt.Fprintf(out, "seeded %d items and %d phrases from %s\n", len(catalog.Items), len(catalog.Phrases), opts.file)

	if opts.adminEmail == "" {
		return nil
	}
	svc := service.NewAuthService(pool, nil, repository.NewPgAdminUserRepository(), nil, nil, nil, newLogger())
	admin, err := svc.CreateAdmin(ctx, opts.adminEmail, opts.adminPassword, opts.adminName, opts.adminRole)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created admin %s (%s) id=%s\n", admin.Email, admin.Role, admin.ID)
	return nil
}
