package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clearstack/clearflow/internal/config"
	"github.com/clearstack/clearflow/internal/storage/factory"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a clearflow workspace in the current directory",
	Long: `Create the .clearflow directory with a default config.yaml and an empty
SQLite database. Safe to re-run; an existing config is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path("")
		if _, err := os.Stat(path); err == nil {
			if !quietFlag {
				fmt.Printf("Already initialized (%s)\n", path)
			}
			return nil
		}

		if err := config.Save("", cfg); err != nil {
			return err
		}

		// Open once so the schema exists before the first real command.
		s, err := factory.Open(cmd.Context(), cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to create database %s: %w", cfg.DB, err)
		}
		if err := s.Close(); err != nil {
			return err
		}

		if !quietFlag {
			fmt.Printf("Initialized clearflow workspace\n")
			fmt.Printf("  config:   %s\n", path)
			fmt.Printf("  database: %s\n", cfg.DB)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
