package main

import (
	"os"

	"katydid-common-contract/cmd/contractctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
