package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clearstack/clearflow/internal/types"
)

var doctypeCmd = &cobra.Command{
	Use:   "doctype",
	Short: "Manage document types",
}

var doctypeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a document type with its ordered clearance stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stagesFlag, _ := cmd.Flags().GetString("stages")
		stages := splitStages(stagesFlag)
		if len(stages) == 0 {
			return fmt.Errorf("at least one stage is required (--stages)")
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		dt := &types.DocumentType{
			ID:             uuid.NewString(),
			Name:           args[0],
			RequiredStages: stages,
			CreatedAt:      time.Now().UTC(),
		}
		if err := dt.Validate(); err != nil {
			return err
		}
		if err := s.CreateDocumentType(cmd.Context(), dt); err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(dt)
		}
		if !quietFlag {
			fmt.Printf("Created document type %s (%s)\n", dt.Name, dt.ID)
			fmt.Printf("  stages: %s\n", strings.Join(dt.RequiredStages, " > "))
		}
		return nil
	},
}

var doctypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List document types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		docTypes, err := s.ListDocumentTypes(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(docTypes)
		}
		if len(docTypes) == 0 {
			fmt.Println("No document types defined. Create one with: cfl doctype add")
			return nil
		}
		for _, dt := range docTypes {
			fmt.Printf("%-38s %-24s %s\n", dt.ID, dt.Name, strings.Join(dt.RequiredStages, " > "))
		}
		return nil
	},
}

// splitStages parses a comma-separated stage list, trimming blanks.
func splitStages(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	doctypeAddCmd.Flags().String("stages", "", "Comma-separated ordered stage names (e.g. library,cashier,registrar)")
	_ = doctypeAddCmd.MarkFlagRequired("stages")
	doctypeCmd.AddCommand(doctypeAddCmd, doctypeListCmd)
	rootCmd.AddCommand(doctypeCmd)
}
