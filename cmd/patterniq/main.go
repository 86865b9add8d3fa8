package main

import (
	"os"

	"github.com/wonny/patterniq/cmd/patterniq/commands"
)

// main is the entry point for the PatternIQ CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/patterniq [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
