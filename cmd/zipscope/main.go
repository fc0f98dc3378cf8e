package main

import (
	"os"

	"github.com/zipscope/zipscope/cmd/zipscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
