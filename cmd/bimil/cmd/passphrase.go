package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmcleod/bimil/internal/util"
)

const (
	passphraseEnv    = "BIMIL_PASSPHRASE"
	newPassphraseEnv = "BIMIL_NEW_PASSPHRASE"
)

var errNoTerminal = errors.New("stdin is not a terminal; set " + passphraseEnv)

// readPassphrase returns the passphrase from the environment, or prompts for
// it without echo.
func readPassphrase(cmd *cobra.Command, prompt string) ([]byte, error) {
	if s, ok := os.LookupEnv(passphraseEnv); ok {
		return []byte(s), nil
	}
	return promptPassphrase(cmd, prompt)
}

// readNewPassphrase asks twice for a passphrase that protects a new
// document. BIMIL_NEW_PASSPHRASE takes precedence over BIMIL_PASSPHRASE.
func readNewPassphrase(cmd *cobra.Command) ([]byte, error) {
	if s, ok := os.LookupEnv(newPassphraseEnv); ok {
		return []byte(s), nil
	}
	if s, ok := os.LookupEnv(passphraseEnv); ok {
		return []byte(s), nil
	}
	first, err := promptPassphrase(cmd, "New passphrase: ")
	if err != nil {
		return nil, err
	}
	second, err := promptPassphrase(cmd, "Repeat passphrase: ")
	if err != nil {
		util.WipeBytes(first)
		return nil, err
	}
	defer util.WipeBytes(second)
	if !util.EqualBytes(first, second) {
		util.WipeBytes(first)
		return nil, errors.New("passphrases do not match")
	}
	return first, nil
}

func promptPassphrase(cmd *cobra.Command, prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errNoTerminal
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return p, nil
}
