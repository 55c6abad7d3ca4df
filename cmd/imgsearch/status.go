// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/sigil-dev/imgsearch/pkg/health"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health",
		Long:  "Query the running server's /health endpoint and display the state of each component.",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := viper.GetString("address")
	out := cmd.OutOrStdout()

	ctx, cancel := requestContext(cmd)
	defer cancel()

	report, err := fetchHealth(ctx, clientFromViper())
	if err != nil {
		if imgerr.HasCode(err, imgerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	return render(cmd, report, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "Server at %s: %s\n", addr, report.Status); err != nil {
			return err
		}
		for _, name := range sortedKeys(report.Components) {
			c := report.Components[name]
			line := fmt.Sprintf("  %-16s %s (%dms)", name, c.Status, c.LatencyMS)
			if c.Error != "" {
				line += ": " + c.Error
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
}

// fetchHealth reads /health. A degraded server answers 503 with a report
// body, which is returned without error.
func fetchHealth(ctx context.Context, c *apiClient) (health.Report, error) {
	var report health.Report
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return report, imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "building request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return report, imgerr.Errorf(imgerr.CodeCLIServerNotRunning, "server is not running at %s", req.URL.Host)
		}
		return report, imgerr.Wrap(err, imgerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return report, imgerr.Errorf(imgerr.CodeCLIRequestFailure, "server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, imgerr.Wrap(err, imgerr.CodeCLIResponseInvalid, "invalid health response")
	}
	return report, nil
}
