package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/totp"
	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/psafe"
)

var (
	autotypeGroup  string
	autotypeReveal bool
)

var autotypeCmd = &cobra.Command{
	Use:   "autotype <file> <title>",
	Short: "Print the keystroke sequence of an entry's autotype template",
	Long: `Prints one autotype step per line. Commands are shown in braces.
Without --reveal the template is shown unexpanded, so no values are printed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd, args[0], psafe.WithReadOnly())
		if err != nil {
			return err
		}
		defer doc.Destroy()
		e, err := findEntry(doc, autotypeGroup, args[1])
		if err != nil {
			return err
		}
		tokens := psafe.ParseAutotype(e.Autotype())
		if autotypeReveal {
			tokens = psafe.ExpandAutotype(tokens, e)
		}
		return writeAutotype(cmd.OutOrStdout(), tokens, e, autotypeReveal)
	},
}

// writeAutotype prints tokens one per line. With reveal, TwoFactorCode is
// replaced by the keys of the current code.
func writeAutotype(w io.Writer, tokens []psafe.AutotypeToken, e *psafe.Entry, reveal bool) error {
	for _, t := range tokens {
		switch {
		case t.Kind == psafe.AutotypeKey:
			fmt.Fprintln(w, t.Content)
		case t.Content == "TwoFactorCode" && reveal:
			key := e.TwoFactorKey()
			code, err := totp.Code(key, now())
			util.WipeBytes(key)
			if err != nil {
				return err
			}
			for _, k := range psafe.AutotypeKeys(code) {
				fmt.Fprintln(w, k.Content)
			}
		default:
			fmt.Fprintf(w, "{%s}\n", t.Content)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(autotypeCmd)
	autotypeCmd.Flags().StringVarP(&autotypeGroup, "group", "g", "", "group of the entry")
	autotypeCmd.Flags().BoolVarP(&autotypeReveal, "reveal", "r", false, "expand the template with the entry's values")
}
