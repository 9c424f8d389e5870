package main

import (
	"os"

	"fintrack/internal/commands"
)

func main() {
	if err := commands.NewWorkerCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
