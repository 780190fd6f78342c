// Maestro runtime — serves a construction-plan knowledge store to agents,
// the browser workspace, and the fleet command center.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(fault.ExitCode(err))
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Construction-plan intelligence runtime",
		Long: `Maestro serves a structured knowledge store built from construction
plan sets: pages, regions, workspaces, notes, and schedules, with a live
WebSocket feed and a fleet-level command center.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(upCmd())
	cmd.AddCommand(doctorCmd())
	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(toolsCmd())

	return cmd
}
