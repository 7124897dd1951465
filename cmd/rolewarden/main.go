// Package main starts the rolewarden bot and handles termination.
//
// The process is a gateway adapter around activity accounting and role
// coordination; all durable state lives in the SQLite journal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	rwcmd "rolewarden/internal/cmd/rolewarden"
)

func main() {
	cfg, err := rwcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ROLEWARDEN] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rwcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
