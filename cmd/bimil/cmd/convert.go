package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/bimil"
	"github.com/jmcleod/bimil/convert"
	"github.com/jmcleod/bimil/internal/util"
)

var (
	convertForce         bool
	convertNewPassphrase bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <legacy-file> <output-file>",
	Short: "Convert a legacy Bimil container to the current format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := args[0], args[1]
		if err := checkOverwrite(dst, convertForce); err != nil {
			return err
		}
		docOpts, err := documentOptions()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase(cmd, "Legacy passphrase: ")
		if err != nil {
			return err
		}
		defer util.WipeBytes(passphrase)

		legacy, err := bimil.OpenFile(src, passphrase)
		if err != nil {
			return fmt.Errorf("opening %s: %w", src, err)
		}
		defer legacy.Close()

		target := passphrase
		if convertNewPassphrase {
			target, err = readNewPassphrase(cmd)
			if err != nil {
				return err
			}
			defer util.WipeBytes(target)
		}

		doc, err := convert.FromLegacy(legacy, target, docOpts...)
		if err != nil {
			return err
		}
		defer doc.Destroy()
		if err := saveDocumentFile(doc, dst); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Converted %d entries to %s\n", doc.Entries().Len(), dst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().BoolVarP(&convertForce, "force", "f", false, "overwrite the output file")
	convertCmd.Flags().BoolVar(&convertNewPassphrase, "new-passphrase", false, "protect the output with a different passphrase")
}
