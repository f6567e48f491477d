package main

import "github.com/jmcleod/bimil/cmd/bimil/cmd"

func main() {
	cmd.Execute()
}
