// Package main provides a standalone health probe for the pantry service
// This command can be used for Docker health checks and monitoring scripts
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

// Options holds command-line configuration
type Options struct {
	URL        string
	ConfigPath string
	Timeout    time.Duration
	Retry      time.Duration
	Format     string
	Degraded   bool
}

func main() {
	os.Exit(run(parseFlags()))
}

// parseFlags parses command-line flags
func parseFlags() Options {
	opts := Options{}

	flag.StringVar(&opts.URL, "url", os.Getenv("HEALTH_CHECK_URL"), "Health endpoint URL (defaults to the admin server /health)")
	flag.StringVar(&opts.ConfigPath, "config", os.Getenv("PANTRY_CONFIG"), "Configuration file path")
	flag.DurationVar(&opts.Timeout, "timeout", 5*time.Second, "Per request timeout")
	flag.DurationVar(&opts.Retry, "retry", 0, "Keep retrying failed requests for this long")
	flag.StringVar(&opts.Format, "format", "text", "Output format: text, json")
	flag.BoolVar(&opts.Degraded, "allow-degraded", true, "Treat a degraded service as passing")
	flag.Parse()

	return opts
}

func run(opts Options) int {
	url := opts.URL
	if url == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			return exitCodeError
		}
		url = adminURL(cfg)
	}

	client := &http.Client{Timeout: opts.Timeout}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if opts.Retry > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = opts.Retry
		policy = exp
	}

	var resp healthcheck.Response
	err := backoff.Retry(func() error {
		r, err := fetch(context.Background(), client, url)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return exitCodeError
	}

	output(resp, opts.Format)
	return exitCode(resp.Status, opts.Degraded)
}

func adminURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d/health", host, cfg.Monitoring.MetricsPort)
}

// fetch decodes the health document; 503 still carries a body worth reporting
func fetch(ctx context.Context, client *http.Client, url string) (healthcheck.Response, error) {
	var out healthcheck.Response

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return out, backoff.Permanent(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return out, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health response: %w", err)
	}
	return out, nil
}

func exitCode(status healthcheck.Status, allowDegraded bool) int {
	switch status {
	case healthcheck.StatusHealthy:
		return exitCodeSuccess
	case healthcheck.StatusDegraded:
		if allowDegraded {
			return exitCodeSuccess
		}
	}
	return exitCodeFailure
}

func output(resp healthcheck.Response, format string) {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}

	fmt.Printf("Status: %s (version %s)\n", resp.Status, resp.Version)
	for _, check := range resp.Checks {
		line := fmt.Sprintf("  %-16s %s", check.Name, check.Status)
		if check.Message != "" {
			line += " - " + check.Message
		}
		fmt.Println(line)
	}
}
