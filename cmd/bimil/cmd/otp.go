package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/totp"
	"github.com/jmcleod/bimil/internal/util"
	"github.com/jmcleod/bimil/psafe"
)

var otpGroup string

// now is replaced in tests.
var now = time.Now

var otpCmd = &cobra.Command{
	Use:   "otp <file> <title>",
	Short: "Print the current two-factor code of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd, args[0], psafe.WithReadOnly())
		if err != nil {
			return err
		}
		defer doc.Destroy()
		e, err := findEntry(doc, otpGroup, args[1])
		if err != nil {
			return err
		}
		key := e.TwoFactorKey()
		defer util.WipeBytes(key)

		at := now()
		code, err := totp.Code(key, at)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Title(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%ds left)\n", code, int(totp.Remaining(at).Seconds()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(otpCmd)
	otpCmd.Flags().StringVarP(&otpGroup, "group", "g", "", "group of the entry")
}
