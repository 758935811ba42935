/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/config"
	"github.com/result-system/apiserver/internal/logging"
)

const serviceName = "result-system-api"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "result-system",
	Short: "Result System API server",
	Long: `Result System API server. It manages users, classes and their
authentication sessions.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.Config) *zap.Logger {
	return logging.New(cfg.Env, cfg.Log.Level, serviceName)
}
