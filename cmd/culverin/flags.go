package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"culverin/internal/pacer"
	"culverin/internal/target"
)

// parseRate accepts the vegeta-family "count/period" syntax (e.g. "50/1s",
// "1000/1m") or a bare number meaning count-per-second, and "0" or
// "infinity" for an unpaced attack.
func parseRate(s string) (pacer.Rate, error) {
	if s == "" || s == "infinity" || s == "0" {
		return pacer.Rate{}, nil
	}
	parts := strings.SplitN(s, "/", 2)
	freq, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return pacer.Rate{}, fmt.Errorf("rate: invalid frequency %q", parts[0])
	}
	if len(parts) == 1 {
		return pacer.Rate{Freq: freq, Per: time.Second}, nil
	}
	per, err := time.ParseDuration(parts[1])
	if err != nil {
		return pacer.Rate{}, fmt.Errorf("rate: invalid period %q: %w", parts[1], err)
	}
	return pacer.Rate{Freq: freq, Per: per}, nil
}

// parseHeaders turns repeated "-H 'Name: Value'" flag values into Headers.
func parseHeaders(raw []string) ([]target.Header, error) {
	headers := make([]target.Header, 0, len(raw))
	for _, h := range raw {
		idx := strings.Index(h, ":")
		if idx < 0 {
			return nil, fmt.Errorf("header %q: expected \"Name: Value\"", h)
		}
		headers = append(headers, target.Header{
			Name:  strings.TrimSpace(h[:idx]),
			Value: strings.TrimSpace(h[idx+1:]),
		})
	}
	return headers, nil
}

// parseKV parses repeated "key=value" flag values into a map, used for
// --connect-to and --proxy-header.
func parseKV(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		idx := strings.Index(kv, "=")
		if idx < 0 {
			return nil, fmt.Errorf("expected \"key=value\", got %q", kv)
		}
		out[kv[:idx]] = kv[idx+1:]
	}
	return out, nil
}

// openInput opens path for reading, or returns stdin for "" or "-".
func openInput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// openOutput opens path for writing (truncating), or returns stdout for ""
// or "-".
func openOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}
