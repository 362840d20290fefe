package main

import (
	"os"

	"github.com/solatis/dialectc/cmd/dialectc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
