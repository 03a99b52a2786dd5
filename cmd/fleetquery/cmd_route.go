// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/openpitiq/fleetquery/services/query"
)

// newRouteCmd builds the one-shot classification command, used to sanity
// check intent configuration changes without starting the server.
func newRouteCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "route [query...]",
		Short: "Classify and route one query, printing the decision as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Keep stdout clean for the JSON decision.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			})))

			svc, err := query.NewService(cmd.Context(), query.ServiceConfig{})
			if err != nil {
				return fmt.Errorf("create query service: %w", err)
			}
			defer svc.Close()

			decision := svc.Route(cmd.Context(), "", strings.Join(args, " "))

			// Indent for humans, one line per decision when piped.
			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact && isatty.IsTerminal(os.Stdout.Fd()) {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(decision)
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Always print single-line JSON")
	return cmd
}
