// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command fleetquery runs the mining-fleet query understanding service.
//
// The service classifies free-text operational questions ("which tipper
// worked with EX-189 in January?") and routes each one to a structured-query
// engine, a document-retrieval answerer, or an equipment-allocation
// optimizer, with the structured parameters the chosen engine needs.
//
// Usage:
//
//	fleetquery serve --port 8080 --feedback-dir /var/lib/fleetquery/feedback
//	fleetquery route "top 5 tippers by trips last month"
//	fleetquery version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "fleetquery",
		Short:         "Mining-fleet query understanding and routing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newRouteCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	if err := root.Execute(); err != nil {
		slog.Error("fleetquery failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
