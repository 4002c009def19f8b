package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
)

var (
	enrichKinds  []string
	enrichPlaces []string
	enrichLimit  int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Submit due enrichment tasks for stored places",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		kinds, err := parseKinds(enrichKinds)
		if err != nil {
			return err
		}

		targets, err := resolvePlaces(ctx, env.Store, enrichPlaces, enrichLimit)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println("no places to enrich; run `localrank search` first")
			return nil
		}

		submitted, err := env.Orchestrator.EnrichPlaces(ctx, targets, kinds)
		if err != nil {
			return err
		}
		zap.L().Info("enrichment batch complete",
			zap.Int("places", len(targets)),
			zap.Int("submitted", submitted),
		)
		fmt.Printf("submitted %d tasks across %d places\n", submitted, len(targets))
		return nil
	},
}

// resolvePlaces loads the named places, or up to limit stored places when no
// ids were given. GetPlace reports an unknown id as a nil place, not an
// error, so it is checked here.
func resolvePlaces(ctx context.Context, st store.Store, ids []string, limit int) ([]model.Place, error) {
	if len(ids) == 0 {
		return st.ListPlaces(ctx, limit)
	}
	var targets []model.Place
	for _, id := range ids {
		p, err := st.GetPlace(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "place %s", id)
		}
		if p == nil {
			return nil, eris.Errorf("place %s not found; run `localrank search` first", id)
		}
		targets = append(targets, *p)
	}
	return targets, nil
}

func parseKinds(raw []string) ([]model.TaskKind, error) {
	var kinds []model.TaskKind
	for _, s := range raw {
		k, err := model.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichKinds, "kinds", nil, "task kinds to submit (default all)")
	enrichCmd.Flags().StringSliceVar(&enrichPlaces, "place", nil, "specific place ids to enrich")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 100, "max stored places to enrich")
	rootCmd.AddCommand(enrichCmd)
}
