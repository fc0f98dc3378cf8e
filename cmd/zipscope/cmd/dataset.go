package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/provider"
)

// addDatasetFlags registers the flags choosing where a command reads the
// location dataset from.
func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("dataset", "", "location dataset JSON file")
	cmd.Flags().Bool("fetch", false, "fetch the dataset from the location provider")
	cmd.Flags().String("api-url", "", "location provider base URL (defaults to location.api_url)")
}

func datasetSource(cmd *cobra.Command) (provider.Source, error) {
	path, _ := cmd.Flags().GetString("dataset")
	fetch, _ := cmd.Flags().GetBool("fetch")

	switch {
	case path != "" && fetch:
		return nil, fmt.Errorf("--dataset and --fetch are mutually exclusive")
	case path != "":
		return provider.FileSource{Path: path}, nil
	case fetch:
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		apiURL := cfg.Location.APIURL
		if cmd.Flags().Changed("api-url") {
			apiURL, _ = cmd.Flags().GetString("api-url")
		}
		return provider.NewClient(apiURL, cfg.Location.FetchTimeout), nil
	}
	return nil, fmt.Errorf("one of --dataset or --fetch is required")
}

func loadDataset(ctx context.Context, cmd *cobra.Command) (*location.Dataset, error) {
	source, err := datasetSource(cmd)
	if err != nil {
		return nil, err
	}
	data, err := source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return location.NewDataset(data)
}
