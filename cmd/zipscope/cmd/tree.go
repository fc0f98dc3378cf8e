package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/spf13/cobra"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/types"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the location tree with ZIP counts",
	RunE:  runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)
	addDatasetFlags(treeCmd)
	treeCmd.Flags().String("query", "", "only show nodes whose name contains the query, with their ancestors")
	treeCmd.Flags().Int("depth", types.LevelCity, "deepest level to print (0=states .. 3=ZIPs)")
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ds, err := loadDataset(ctx, cmd)
	if err != nil {
		return err
	}
	depth, _ := cmd.Flags().GetInt("depth")
	if depth < types.LevelState || depth > types.LevelZip {
		return fmt.Errorf("%w: --depth %d", types.ErrInvalidLevel, depth)
	}
	query, _ := cmd.Flags().GetString("query")

	tree, err := location.NewTree(ds).LoadAll(ctx)
	if err != nil {
		return err
	}
	nodes := location.Filter(tree.Roots(), query)

	l := list.NewWriter()
	l.SetOutputMirror(cmd.OutOrStdout())
	appendNodes(l, nodes, depth)
	l.SetStyle(list.StyleConnectedRounded)
	l.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "%d states, %d ZIP codes\n", len(ds.States()), ds.TotalZips())
	return nil
}

func appendNodes(l list.Writer, nodes []*location.Node, depth int) {
	for _, n := range nodes {
		if n.IsLeaf() {
			l.AppendItem(n.Name)
		} else {
			l.AppendItem(fmt.Sprintf("%s (%d ZIPs)", n.Name, n.TotalZipCodes))
		}
		if n.Level < depth && len(n.Children) > 0 {
			l.Indent()
			appendNodes(l, n.Children, depth)
			l.UnIndent()
		}
	}
}
