package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/ani/internal/basis"
)

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the descriptor layout of the basis",
		Args:  cobra.NoArgs,
		RunE:  layoutHandler,
	}
}

func layoutHandler(cmd *cobra.Command, _ []string) error {
	b, err := loadBasis(cmd)
	if err != nil {
		return err
	}
	p := b.Params()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "basis %s: %d features (%d radial x 4 elements, %d angular x %d pairs)\n",
		p.Version, b.FeatureSize(), b.NumRadial(), b.NumAngular(), basis.NumPairs)
	fmt.Fprintf(out, "radial cutoff %g, angular cutoff %g\n\n", p.RadialCutoff, p.AngularCutoff)

	var data [][]string
	for _, blk := range b.Blocks() {
		data = append(data, []string{
			blk.Kind,
			blk.Elements,
			strconv.Itoa(blk.Offset),
			strconv.Itoa(blk.Offset + blk.Size - 1),
			strconv.Itoa(blk.Size),
		})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"KIND", "ELEMENTS", "FIRST", "LAST", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
