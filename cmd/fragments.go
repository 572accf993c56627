// -- cmd/fragments.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mkarrick/flowpilot/internal/flowcache"
	"github.com/mkarrick/flowpilot/internal/observability"
)

var (
	pruneOlderThan  time.Duration
	pruneMinSuccess int
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments",
	Short: "Inspect and maintain the persisted flow cache.",
}

var fragmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored flow fragment as JSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *flowcache.Store) error {
			frags, err := store.ListAll(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(frags, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var fragmentsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stale or rarely successful fragments.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *flowcache.Store) error {
			cutoff := time.Now().UTC().Add(-pruneOlderThan)
			removed, err := store.Prune(ctx, cutoff, pruneMinSuccess)
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d fragments\n", removed)
			return nil
		})
	},
}

func init() {
	fragmentsPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "only prune fragments not updated within this window")
	fragmentsPruneCmd.Flags().IntVar(&pruneMinSuccess, "min-success", 2, "only prune fragments with fewer successful replays than this")
	fragmentsCmd.AddCommand(fragmentsListCmd, fragmentsPruneCmd)
	rootCmd.AddCommand(fragmentsCmd)
}

func withStore(ctx context.Context, fn func(context.Context, *flowcache.Store) error) error {
	dbURL := appConfig.Database().URL
	if dbURL == "" {
		return fmt.Errorf("fragments commands require database.url (or FLOWPILOT_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	store, err := flowcache.NewStore(ctx, pool, observability.GetLogger())
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}
