package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/task"
	"github.com/zipscope/zipscope/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Generate location rules for a set of node ids",
	Example: `  zipscope rules --dataset states.json --path CA --path NV/Clark
  zipscope rules --fetch --path "CA/Los%20Angeles"`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	addDatasetFlags(rulesCmd)
	rulesCmd.Flags().StringArray("path", nil, "selected node id (state[/county[/city[/zip]]]); repeatable")
	rulesCmd.Flags().String("country", task.DefaultCountry, "country name used by exclusion rules")
	rulesCmd.Flags().Bool("summary", true, "print a summary table after the rules")
}

func runRules(cmd *cobra.Command, args []string) error {
	ds, err := loadDataset(cmd.Context(), cmd)
	if err != nil {
		return err
	}

	ids, _ := cmd.Flags().GetStringArray("path")
	selected := make([]types.Path, 0, len(ids))
	for _, id := range ids {
		p, err := types.ParsePathID(id)
		if err != nil {
			return fmt.Errorf("--path %q: %w", id, err)
		}
		selected = append(selected, p)
	}

	country, _ := cmd.Flags().GetString("country")
	res := location.Generate(selected, ds, country)

	out, err := json.MarshalIndent(res.Rules, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if summary, _ := cmd.Flags().GetBool("summary"); !summary {
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Encoding", "Selected", "Normalized", "Included ZIPs", "Excluded ZIPs", "Rules"})
	t.AppendRow(table.Row{
		res.Rules.Encoding(),
		len(selected),
		len(res.Normalized),
		res.Included,
		res.Excluded,
		res.Rules.RuleCount(),
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
