package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/psafe"
)

var (
	listGroup string
	listSort  bool
)

var listCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List the entries of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd, args[0], psafe.WithReadOnly())
		if err != nil {
			return err
		}
		defer doc.Destroy()

		entries := doc.Entries()
		if listSort {
			// Sorting a read-only document only reorders the in-memory view.
			entries.Sort()
		}
		return writeEntryTable(cmd.OutOrStdout(), entries.Entries(), psafe.GroupPath(listGroup))
	},
}

// writeEntryTable prints entries below group, or all entries when group is
// empty.
func writeEntryTable(w io.Writer, entries []*psafe.Entry, group psafe.GroupPath) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTITLE\tUSER NAME\tURL")
	for _, e := range entries {
		if group != "" && !inGroup(e.Group(), group) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Group(), e.Title(), e.UserName(), e.URL())
	}
	return tw.Flush()
}

func inGroup(g, parent psafe.GroupPath) bool {
	gs, ps := g.Segments(), parent.Segments()
	if len(gs) < len(ps) {
		return false
	}
	for i, s := range ps {
		if !util.EqualFold(gs[i], s) {
			return false
		}
	}
	return true
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listGroup, "group", "g", "", "only list entries in this group or below")
	listCmd.Flags().BoolVarP(&listSort, "sort", "s", false, "sort by group and title")
}
