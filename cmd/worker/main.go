// Worker bulk-deletes expired sessions on an interval. Run it as a single
// instance alongside the API servers; the sweep is idempotent, so overlap
// with the in-server sweeper is harmless.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tenantauth/backend/internal/config"
	"tenantauth/backend/internal/db"
	"tenantauth/backend/internal/session"
	sessionrepo "tenantauth/backend/internal/session/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := session.NewSweeper(sessionrepo.NewPostgresRepository(pool), cfg.SweepInterval())

	// Sweep once at startup so a long-stopped worker catches up immediately.
	if n, err := sweeper.SweepOnce(ctx); err != nil {
		log.Printf("worker: initial sweep: %v", err)
	} else if n > 0 {
		log.Printf("worker: initial sweep removed %d expired sessions", n)
	}

	log.Printf("worker: sweeping expired sessions every %s", cfg.SweepInterval())
	sweeper.Run(ctx)
	log.Println("worker: stopped")
}
