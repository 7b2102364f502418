package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/datasets"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download forecast datasets",
	}

	var product string
	thredds := &cobra.Command{
		Use:   "thredds",
		Short: "Download the newest NDFD file of a product from THREDDS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := datasets.Products[product]; !ok {
				return fmt.Errorf("unknown product %q (known: %s)", product, strings.Join(datasets.ProductNames(), ", "))
			}
			return runDownload(cmd, product)
		},
	}
	thredds.Flags().StringVar(&product, "product", "", "product to download: "+strings.Join(datasets.ProductNames(), "|"))
	_ = thredds.MarkFlagRequired("product")

	blend := &cobra.Command{
		Use:   "blend",
		Short: "Download the National Blend of Models daily files from NOMADS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDownload(cmd, "blend")
		},
	}

	cmd.AddCommand(thredds, blend)
	return cmd
}

func runDownload(cmd *cobra.Command, product string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	artifacts, err := appInstance.Download(cmd.Context(), product)
	for _, a := range artifacts {
		cmd.Println(a.URI)
	}
	if partialFailure(err) {
		appInstance.Logger().Warn("download incomplete", zap.String("product", product), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", product, err)
	}
	return nil
}
