package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/classcheck/internal/host"
)

// parsePortArg reads the optional positional port. No argument yields host.PortUnset.
func parsePortArg(args []string) (int, error) {
	if len(args) == 0 {
		return host.PortUnset, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: must be a number", args[0])
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be 1-65535", port)
	}
	return port, nil
}

// applyPort overrides the configured host port unless port is host.PortUnset.
func applyPort(cfg host.Config, port int) host.Config {
	if port != host.PortUnset {
		cfg.Port = port
	}
	return cfg
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
