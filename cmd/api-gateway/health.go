package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradelens/ai-gateway/services/gateway"
)

var errUnhealthy = errors.New("gateway is unhealthy")

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show health metrics of a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			metrics, err := fetchHealth(ctx, http.DefaultClient, addr)
			if err != nil {
				return err
			}
			if err := printHealth(cmd.OutOrStdout(), metrics); err != nil {
				return err
			}
			if !metrics.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the gateway")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

// fetchHealth reads /api/v1/ai/health. A 503 still carries the metrics body.
func fetchHealth(ctx context.Context, client *http.Client, addr string) (*gateway.HealthMetrics, error) {
	url := strings.TrimRight(addr, "/") + "/api/v1/ai/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach gateway at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var body struct {
		Data gateway.HealthMetrics `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &body.Data, nil
}

func printHealth(out io.Writer, m *gateway.HealthMetrics) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintf(w, "healthy\t%t\n", m.Healthy)
	fmt.Fprintf(w, "provider\t%s\n", m.Provider)
	fmt.Fprintf(w, "breaker\t%s\n", m.BreakerState)
	fmt.Fprintf(w, "requests\t%d\n", m.RequestCount)
	fmt.Fprintf(w, "errors\t%d\n", m.ErrorCount)
	fmt.Fprintf(w, "error rate\t%.2f%%\n", m.ErrorRate*100)
	fmt.Fprintf(w, "cache hits\t%d\n", m.CacheHits)
	fmt.Fprintf(w, "cache misses\t%d\n", m.CacheMisses)
	fmt.Fprintf(w, "fallbacks\t%d\n", m.FallbackCount)
	fmt.Fprintf(w, "retries\t%d\n", m.RetryCount)
	return w.Flush()
}
