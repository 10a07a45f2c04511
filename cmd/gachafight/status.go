// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ServerStatus is a probe of a running server's health endpoints.
type ServerStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running arena server",
		Long:  `Probe the liveness and readiness endpoints of a running server.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := queryStatus(cfg.addr, cfg.timeout)
			if cfg.jsonOutput {
				out, err := formatStatusJSON(st)
				if err != nil {
					return err
				}
				cmd.Println(out)
			} else {
				cmd.Print(formatStatusTable(st))
			}
			if !st.Live {
				return oops.Code("SERVER_DOWN").With("addr", cfg.addr).Errorf("server is not running")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "127.0.0.1:9100", "metrics/health address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "probe timeout")

	return cmd
}

func queryStatus(addr string, timeout time.Duration) ServerStatus {
	st := ServerStatus{Addr: addr}
	client := &http.Client{Timeout: timeout}

	live, err := probe(client, "http://"+addr+"/healthz/liveness")
	if err != nil {
		st.Error = fmt.Sprintf("failed to connect: %v", err)
		return st
	}
	st.Live = live

	ready, err := probe(client, "http://"+addr+"/healthz/readiness")
	if err != nil {
		st.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return st
	}
	st.Ready = ready
	return st
}

func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url) //nolint:noctx // short-lived CLI probe bounded by client timeout
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}

func formatStatusTable(st ServerStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDR\tLIVE\tREADY\tERROR")
	errText := st.Error
	if errText == "" {
		errText = "-"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Addr, yesNo(st.Live), yesNo(st.Ready), errText)
	_ = w.Flush()
	return string(buf)
}

func formatStatusJSON(st ServerStatus) (string, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", oops.Wrapf(err, "failed to marshal status")
	}
	return string(data), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
