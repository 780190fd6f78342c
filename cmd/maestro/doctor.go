package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/command"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/config"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
)

func doctorCmd() *cobra.Command {
	var (
		fix      bool
		asJSON   bool
		storeArg string
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check (and optionally repair) the knowledge-store layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := storeRoot(storeArg)
			if err != nil {
				return err
			}
			rep, err := command.Doctor(resolver.New(root), fix)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				printReport(rep)
			}
			return command.DoctorErr(rep)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair what can be repaired")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&storeArg, "store", "", "Knowledge-store root")
	return cmd
}

func printReport(rep command.DoctorReport) {
	fmt.Printf("store: %s\nprojects: %d\n", rep.StoreRoot, rep.Projects)
	for _, f := range rep.Findings {
		mark := " "
		if f.Fixed {
			mark = "fixed"
		}
		fmt.Printf("  [%s] %s %s %s\n", f.Severity, f.Path, f.Message, mark)
	}
	if rep.Healthy {
		fmt.Println("store is healthy")
	} else {
		fmt.Println("store has unrepaired errors")
	}
}

// storeRoot resolves the store root for one-shot commands: flag, then env,
// then install state.
func storeRoot(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg := config.Load()
	if cfg.StoreRoot != "" {
		return cfg.StoreRoot, nil
	}
	if st, err := resolver.LoadInstallState(); err == nil && st.StoreRoot != "" {
		return st.StoreRoot, nil
	}
	return "", fault.New(fault.KindNotFound, "no store root: pass --store, set MAESTRO_STORE, or run the installer")
}
