package main

import (
	"os"

	"github.com/GrowGrammers/authbridge/cmd/authcli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
