package main

import (
	"fmt"
	"os"

	"tams/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	if cfg.TrustedProjectConfigPath != "" {
		fmt.Fprintf(os.Stderr, "warning: using trusted project config from %s\n", cfg.TrustedProjectConfigPath)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		for _, line := range formatCLIError(err) {
			fmt.Fprintln(os.Stderr, line)
		}
		return 1
	}
	return 0
}
