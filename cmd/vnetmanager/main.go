package main

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vexxhost/vnetmanager/internal/cli"
)

func main() {
	// Set up logging first
	logLevelStr := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	logLevel := log.InfoLevel
	switch logLevelStr {
	case "DEBUG":
		logLevel = log.DebugLevel
	case "WARN":
		logLevel = log.WarnLevel
	case "ERROR":
		logLevel = log.ErrorLevel
	}

	log.SetLevel(logLevel)
	log.SetReportTimestamp(true)
	log.SetReportCaller(true)

	// Create and execute the root command
	rootCmd := cli.NewRootCommand()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
