package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/credvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/credvault/internal/config"
)

const probeTimeout = 2 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe a running server's health endpoint",
	Long: `Health asks the server at CREDVAULT_LISTEN_ADDR for its status and exits
non-zero when it does not answer "ok". It does not open the vault, so it is
safe to use as a container health check next to a running "serve".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		resp, err := probeHealth(cmd.Context(), http.DefaultClient, loopbackAddr(cfg.ListenAddr))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", okMark(), resp.Status, resp.Time)
		return nil
	},
}

// probeHealth fetches /api/v1/health from addr and requires status "ok".
func probeHealth(ctx context.Context, client *http.Client, addr string) (*httphandler.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server at %s unreachable: %w", addr, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server at %s unhealthy: status %d", addr, res.StatusCode)
	}

	var body httphandler.HealthResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("server at %s reports %q", addr, body.Status)
	}
	return &body, nil
}

// loopbackAddr rewrites a bind-all listen address to loopback so the probe
// reaches a server running on the same host.
func loopbackAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
