package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/server"
)

// toolsCmd invokes a tool op against the store from the command line.
// Params are given as key=value pairs; values parse as JSON when they can
// (numbers, booleans, lists), otherwise as strings.
func toolsCmd() *cobra.Command {
	var (
		projectArg string
		storeArg   string
		paramsJSON string
	)
	cmd := &cobra.Command{
		Use:   "tools <op> [key=value ...]",
		Short: "Invoke a tool operation and print its JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			srv, err := server.New(ctx, server.Options{StoreRoot: storeArg, SkipWatcher: true})
			if err != nil {
				return err
			}
			defer srv.Shutdown(ctx)

			op := args[0]
			if op == "list" {
				return printJSON(srv.Tools.List())
			}

			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fault.Wrap(fault.KindInvalidArgument, err, "invalid --json params")
				}
			}
			for _, kv := range args[1:] {
				key, val, ok := strings.Cut(kv, "=")
				if !ok {
					return fault.Newf(fault.KindInvalidArgument, "params must be key=value, got %q", kv)
				}
				params[key] = parseValue(val)
			}

			project, err := srv.Resolver.ActiveProject(projectArg)
			if err != nil {
				return err
			}
			result, err := srv.Tools.Invoke(ctx, project, op, params)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&projectArg, "project", "", "Project slug (default: active project)")
	cmd.Flags().StringVar(&storeArg, "store", "", "Knowledge-store root")
	cmd.Flags().StringVar(&paramsJSON, "json", "", "Params as a JSON object, merged before key=value pairs")
	return cmd
}

// parseValue interprets a command-line value: JSON literal when valid,
// bare string otherwise.
func parseValue(val string) any {
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(val, 64); err == nil {
		return n
	}
	if strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{") {
		var v any
		if err := json.Unmarshal([]byte(val), &v); err == nil {
			return v
		}
	}
	return val
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
