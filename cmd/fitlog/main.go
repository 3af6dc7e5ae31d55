// ABOUTME: Entry point for fitlog CLI.
// ABOUTME: Invokes the root Cobra command.
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/fitlog/internal/logger"
)

func main() {
	err := rootCmd.Execute()
	closeRepo()
	if err != nil {
		logger.Error("command failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
