package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
)

// ingestCmd validates a plan-set source and prints the handoff document the
// external ingest pipeline consumes. The pipeline itself runs out of process.
func ingestCmd() *cobra.Command {
	var (
		projectName string
		storeArg    string
	)
	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Validate a plan set and hand it to the ingest pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			info, err := os.Stat(src)
			if err != nil {
				return fault.Newf(fault.KindNotFound, "ingest source %q not found", src)
			}
			if !info.IsDir() && !strings.EqualFold(filepath.Ext(src), ".pdf") {
				return fault.Newf(fault.KindInvalidArgument, "ingest source must be a PDF or a directory, got %q", src)
			}

			root, err := storeRoot(storeArg)
			if err != nil {
				return err
			}
			if projectName == "" {
				base := filepath.Base(src)
				projectName = strings.TrimSuffix(base, filepath.Ext(base))
			}
			slug := resolver.Slug(projectName)
			if slug == "" {
				return fault.Newf(fault.KindInvalidArgument, "project name %q normalizes to an empty slug", projectName)
			}

			handoff := map[string]any{
				"source":       src,
				"store_root":   root,
				"project_name": projectName,
				"project_slug": slug,
			}
			log.Info().Str("source", src).Str("project", slug).Msg("ingest handoff prepared")
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(handoff)
		},
	}
	cmd.Flags().StringVar(&projectName, "project-name", "", "Project name (default derived from the source filename)")
	cmd.Flags().StringVar(&storeArg, "store", "", "Knowledge-store root")
	return cmd
}
