package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search ranked places for a query and record a ranking snapshot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		client, err := initPlaces()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		resp, err := client.TextSearch(ctx, query)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i, p := range resp.Places {
			place := &model.Place{
				ID:          p.ID,
				Name:        p.DisplayName.Text,
				Category:    p.PrimaryType,
				Address:     p.FormattedAddress,
				Rating:      p.Rating,
				ReviewCount: p.UserRatingCount,
			}
			if err := st.UpsertPlace(ctx, place); err != nil {
				return eris.Wrapf(err, "upsert place %s", p.ID)
			}
			snap := &model.RankSnapshot{
				ID:         uuid.NewString(),
				PlaceID:    p.ID,
				Query:      query,
				Position:   i + 1,
				Rating:     p.Rating,
				Reviews:    p.UserRatingCount,
				CapturedAt: now,
			}
			if err := st.SaveRankSnapshot(ctx, snap); err != nil {
				return eris.Wrapf(err, "save rank snapshot for %s", p.ID)
			}
			fmt.Printf("%2d. %s (%s) rating=%.1f reviews=%d\n",
				i+1, place.Name, place.Address, place.Rating, place.ReviewCount)
		}

		zap.L().Info("search complete",
			zap.String("query", query),
			zap.Int("places", len(resp.Places)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
