package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickelblock/forecast-maps/internal/app"
	"github.com/nickelblock/forecast-maps/internal/geo"
)

type mapFlags struct {
	region   string
	hours    []int
	hourly   bool
	file     string
	download bool
}

func newMapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maps",
		Short: "Render forecast maps for a region",
	}
	for _, kind := range app.MapKinds {
		cmd.AddCommand(newMapKindCmd(kind))
	}
	return cmd
}

var mapShort = map[string]string{
	"temperature":   "GFS surface temperature for each forecast hour",
	"precipitation": "GFS precipitation rate for each forecast hour",
	"spc":           "SPC categorical outlook, one map per valid time",
	"cpc":           "CPC temperature and precipitation probability outlooks",
	"daily":         "NDFD daily high, low and chance of rain per city",
	"blank":         "basemap with cities only",
}

func newMapKindCmd(kind string) *cobra.Command {
	var f mapFlags
	cmd := &cobra.Command{
		Use:   kind,
		Short: mapShort[kind],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			uris, err := appInstance.Maps(cmd.Context(), app.MapRequest{
				Kind:     kind,
				Region:   f.region,
				Hours:    f.hours,
				Hourly:   f.hourly,
				File:     f.file,
				Download: f.download,
			})
			printLines(cmd, uris)
			if errors.Is(err, geo.ErrUnknownRegion) {
				_ = cmd.Usage()
			}
			if err != nil {
				return fmt.Errorf("%s maps: %w", kind, err)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.region, "region", "", "map region from the regions catalogue")
	_ = cmd.MarkFlagRequired("region")

	switch kind {
	case "temperature", "precipitation":
		flags.IntSliceVar(&f.hours, "hours", []int{0}, "forecast hours from now, e.g. 0,24,48")
		if kind == "precipitation" {
			flags.BoolVar(&f.hourly, "hourly", false, "inches per hour instead of inches per day")
		}
	case "spc", "cpc", "daily":
		flags.StringVar(&f.file, "file", "", "GRIB2 object to decode (default: the downloaded file)")
		flags.BoolVar(&f.download, "download", false, "download the dataset before rendering")
	}
	return cmd
}
