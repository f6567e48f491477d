package cmd

import (
	"fmt"
	"io"
)

const banner = `
  ____  _           _ _
 | __ )(_)_ __ ___ (_) |
 |  _ \| | '_ ` + "`" + ` _ \| | |
 | |_) | | | | | | | | |
 |____/|_|_| |_| |_|_|_|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Password Safe - Version %s\x1b[0m\n\n", Version)
}
