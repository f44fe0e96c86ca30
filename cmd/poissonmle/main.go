// Package main runs a Poisson maximum-likelihood estimation from the command line.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	poissonmlecmd "github.com/YuminosukeSato/poissonmle/internal/cmd/poissonmle"
)

func main() {
	cfg, err := poissonmlecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := poissonmlecmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("poissonmle: %v", err)
	}
}
