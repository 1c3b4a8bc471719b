package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func printSummary(w io.Writer, res buildResult) {
	t := res.Terrain
	m := t.Merged
	cells := uint64(m.Extent().Cells())

	okColor.Fprintf(w, "built %s", t.Name)
	dimColor.Fprintf(w, " (%s, %s)\n", res.BuildID, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  pieces    %s\n", humanize.Comma(int64(len(t.Pieces))))
	fmt.Fprintf(w, "  extent    %s (%s cells)\n", m.Extent(), humanize.Comma(int64(cells)))
	fmt.Fprintf(w, "  voxels    %s", humanize.Comma(int64(m.Len())))
	if cells > 0 {
		fmt.Fprintf(w, " (%.1f%% filled)", 100*float64(m.Len())/float64(cells))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  segments  %s", humanize.Comma(int64(m.SegmentCount())))
	if t.Dropped > 0 {
		fmt.Fprintf(w, " (%s merged by compress)", humanize.Comma(int64(t.Dropped)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  drawn     %s instances\n", humanize.Comma(int64(res.Rendered)))
	if res.LogPath != "" {
		fmt.Fprintf(w, "  log       %s\n", res.LogPath)
	}
	if res.SameAs != "" {
		warnColor.Fprintf(w, "  unchanged since build %s\n", res.SameAs)
	}
}
