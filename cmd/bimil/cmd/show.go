package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/psafe"
)

var (
	showGroup  string
	showReveal bool
)

const masked = "********"

var showCmd = &cobra.Command{
	Use:   "show <file> <title>",
	Short: "Show the fields of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd, args[0], psafe.WithReadOnly())
		if err != nil {
			return err
		}
		defer doc.Destroy()
		e, err := findEntry(doc, showGroup, args[1])
		if err != nil {
			return err
		}
		writeEntry(cmd.OutOrStdout(), e, showReveal)
		return nil
	},
}

type entryLine struct {
	label  string
	value  string
	secret bool
}

func entryLines(e *psafe.Entry) []entryLine {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format(time.DateTime)
	}
	lines := []entryLine{
		{"Title", e.Title(), false},
		{"Group", string(e.Group()), false},
		{"User name", e.UserName(), false},
		{"Password", e.Password(), true},
		{"URL", e.URL(), false},
		{"Email", e.Email(), false},
		{"Card number", e.CreditCardNumber(), true},
		{"Expiration", e.CreditCardExpiration(), false},
		{"Security code", e.CreditCardVerificationValue(), true},
		{"PIN", e.CreditCardPin(), true},
		{"Created", formatTime(e.CreationTime()), false},
		{"Modified", formatTime(e.LastModificationTime()), false},
		{"Password changed", formatTime(e.PasswordModificationTime()), false},
		{"Password expires", formatTime(e.PasswordExpiryTime()), false},
	}
	if len(e.TwoFactorKey()) > 0 {
		lines = append(lines, entryLine{"Two-factor key", "present", false})
	}
	if h := e.PasswordHistory(); h.Enabled() && h.Len() > 0 {
		lines = append(lines, entryLine{"Old passwords", fmt.Sprint(h.Len()), false})
	}
	return append(lines, entryLine{"Notes", e.Notes(), false})
}

func writeEntry(w io.Writer, e *psafe.Entry, reveal bool) {
	for _, l := range entryLines(e) {
		if l.value == "" {
			continue
		}
		value := l.value
		if l.secret && !reveal {
			value = masked
		}
		if strings.Contains(value, "\n") {
			value = "\n  " + strings.ReplaceAll(strings.ReplaceAll(value, "\r\n", "\n"), "\n", "\n  ")
		}
		fmt.Fprintf(w, "%s: %s\n", l.label, value)
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showGroup, "group", "g", "", "group of the entry")
	showCmd.Flags().BoolVarP(&showReveal, "reveal", "r", false, "print secrets instead of masking them")
}
