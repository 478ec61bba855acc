package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/api"
	"github.com/vdavid/vmail/webclient/internal/config"
	"github.com/vdavid/vmail/webclient/internal/db"
)

const sessionCleanupInterval = time.Hour

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server, imapService, err := api.NewServer(cfg, pool)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer imapService.Close()

	go cleanupSessions(ctx, pool, sessionCleanupInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("V-Mail server starting on %s (environment: %s)", httpServer.Addr, cfg.Environment)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.Println("Server stopped")
}

// cleanupSessions deletes expired sessions every interval until ctx is canceled.
func cleanupSessions(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removeExpiredSessions(ctx, pool)
		}
	}
}

func removeExpiredSessions(ctx context.Context, pool *pgxpool.Pool) {
	n, err := db.DeleteExpiredSessions(ctx, pool)
	if err != nil {
		log.Printf("Sessions: Failed to delete expired sessions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Sessions: Deleted %d expired sessions", n)
	}
}
