package app

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/quakeworks/srcmodel/internal/source"
)

// renderModel prints the per-group summary table for one converted model.
func (a *App) renderModel(res *modelResult) {
	m := res.Model
	fmt.Fprintf(a.outW, "%s: model %q, %d group(s)\n", res.Path, m.Name, len(m.Groups))
	if len(m.Groups) == 0 {
		return
	}

	table := newTable(a)
	table.SetHeader([]string{"Group", "Tectonic Region", "Sources", "Ruptures"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	srcs, rups := 0, 0
	for i, g := range m.Groups {
		nr := groupRuptures(g)
		srcs += g.Len()
		rups += nr
		table.Append([]string{
			groupLabel(i, g), g.TRT(),
			strconv.Itoa(g.Len()), strconv.Itoa(nr),
		})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(srcs), strconv.Itoa(rups)})
	table.Render()
}

// renderSources prints the per-source detail table of one group.
func (a *App) renderSources(i int, g *source.Group) {
	fmt.Fprintf(a.outW, "group %s: %q, src_interdep %s, rup_interdep %s, %d source(s)\n",
		groupLabel(i, g), g.TRT(), g.SrcInterdep(), g.RupInterdep(), g.Len())
	if g.Len() == 0 {
		return
	}

	table := newTable(a)
	table.SetHeader([]string{"ID", "Kind", "Name", "Mags", "Ruptures"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT,
	})

	for _, src := range g.Sources() {
		min, max := src.MinMaxMag()
		table.Append([]string{
			src.ID(), src.Kind().String(), src.Name(),
			fmt.Sprintf("%g..%g", min, max),
			strconv.Itoa(src.NumRuptures()),
		})
	}
	table.Render()
}

// renderSplit prints how each group of the model partitions into blocks
// of at most maxWeight.
func (a *App) renderSplit(res *modelResult, maxWeight float64) error {
	fmt.Fprintf(a.outW, "split of %q with max weight %s\n", res.Model.Name, fnum(maxWeight))

	table := newTable(a)
	table.SetHeader([]string{"Group", "Block", "Sources", "Weight"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	for i, g := range res.Model.Groups {
		blocks, err := g.Split(maxWeight)
		if err != nil {
			return err
		}
		for j, block := range blocks {
			table.Append([]string{
				groupLabel(i, g), strconv.Itoa(j),
				strconv.Itoa(block.Len()), fnum(block.Weight()),
			})
		}
	}
	table.Render()
	return nil
}

// renderPacked prints the files written by Pack.
func (a *App) renderPacked(packed []packedGroup) {
	if len(packed) == 0 {
		fmt.Fprintln(a.outW, "no groups written")
		return
	}

	table := newTable(a)
	table.SetHeader([]string{"File", "Tectonic Region", "Sources", "Bytes"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	for _, p := range packed {
		table.Append([]string{
			p.File, p.Group.TRT(),
			strconv.Itoa(p.Group.Len()), strconv.FormatInt(p.Bytes, 10),
		})
	}
	table.Render()
}

func newTable(a *App) *tablewriter.Table {
	table := tablewriter.NewWriter(a.outW)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	return table
}

// groupLabel names a group for table rows, falling back to its position
// when the model did not name it.
func groupLabel(i int, g *source.Group) string {
	if g.Name() != "" {
		return g.Name()
	}
	return strconv.Itoa(i)
}

func groupRuptures(g *source.Group) int {
	n := 0
	for _, src := range g.Sources() {
		n += src.NumRuptures()
	}
	return n
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
