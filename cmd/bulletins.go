package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/app"
)

var bulletinShort = map[string]string{
	"zones":    "zone forecasts from forecast.weather.gov as DOCX",
	"afd":      "area forecast discussion as TXT",
	"spc-rss":  "SPC mesoscale discussion RSS feed as HTML",
	"spc-md":   "newest SPC mesoscale discussion page and image",
	"tropical": "NHC tropical weather outlooks as TXT",
	"all":      "every bulletin above",
}

func newBulletinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulletins",
		Short: "Scrape NWS, SPC and NHC text bulletins",
	}
	for _, kind := range app.BulletinKinds {
		cmd.AddCommand(&cobra.Command{
			Use:   kind,
			Short: bulletinShort[kind],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				appInstance, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				uris, err := appInstance.Bulletins(cmd.Context(), kind)
				printLines(cmd, uris)
				if partialFailure(err) {
					appInstance.Logger().Warn("bulletin incomplete", zap.String("kind", kind), zap.Error(err))
					return nil
				}
				if err != nil {
					return fmt.Errorf("%s bulletin: %w", kind, err)
				}
				return nil
			},
		})
	}
	return cmd
}
