// Package main provides the operator CLI for the progression daemon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberhabit/ember/internal/platform/config"

	admincmd "github.com/emberhabit/ember/internal/cmd/admin"
)

func main() {
	cfg, args, err := admincmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admincmd.Run(ctx, cfg, args, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
