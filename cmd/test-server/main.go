// Command test-server runs the web client API against throwaway mail servers
// and a Postgres container, seeded with a logged-in account for cmd/client.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vdavid/vmail/webclient/internal/api"
	"github.com/vdavid/vmail/webclient/internal/config"
	"github.com/vdavid/vmail/webclient/internal/crypto"
	"github.com/vdavid/vmail/webclient/internal/db"
	"github.com/vdavid/vmail/webclient/internal/models"
	"github.com/vdavid/vmail/webclient/internal/testutil"
)

const (
	imapAddress = "127.0.0.1:1143"
	smtpAddress = "127.0.0.1:1025"
	testAccount = "username"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresContainer, connStr, err := startPostgres(ctx)
	if err != nil {
		log.Fatalf("Failed to start Postgres: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate Postgres container: %v", err)
		}
	}()

	imapServer, err := testutil.ListenIMAP(imapAddress)
	if err != nil {
		log.Fatalf("Failed to start IMAP server: %v", err)
	}
	defer imapServer.Close()

	smtpServer, err := testutil.ListenSMTP(smtpAddress)
	if err != nil {
		log.Fatalf("Failed to start SMTP server: %v", err)
	}
	defer smtpServer.Close()

	if err := seedMailbox(imapServer); err != nil {
		log.Fatalf("Failed to seed mailbox: %v", err)
	}

	if err := setupEnvironment(imapServer.Address, smtpServer.Address); err != nil {
		log.Fatalf("Failed to set up environment: %v", err)
	}
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pool, err := setupDatabase(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer pool.Close()

	token, err := seedSession(ctx, pool, cfg, imapServer.Password())
	if err != nil {
		log.Fatalf("Failed to seed test user: %v", err)
	}

	handler, imapService, err := api.NewServer(cfg, pool)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer imapService.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("V-Mail test server starting on %s", httpServer.Addr)
	log.Printf("Test IMAP server: %s (username: %s, password: %s)", imapServer.Address, imapServer.Username(), imapServer.Password())
	log.Printf("Test SMTP server: %s", smtpServer.Address)
	log.Printf("Run the client with VMAIL_SERVER_URL=http://localhost:%s VMAIL_TOKEN=%s VMAIL_ACCOUNT=%s", cfg.Port, token, testAccount)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Server error: %v", err)
	}
	log.Println("Test server stopped")
}

func setupEnvironment(imapServer, smtpServer string) error {
	env := map[string]string{
		"VMAIL_ENV":                   "test",
		"VMAIL_ENCRYPTION_KEY_BASE64": testutil.TestEncryptionKey,
		"VMAIL_DB_PASSWORD":           "vmail",
		"VMAIL_IMAP_SERVER":           imapServer,
		"VMAIL_SMTP_SERVER":           smtpServer,
		"VMAIL_IMAP_TLS":              "false",
	}
	for key, value := range env {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	log.Println("Starting test Postgres database...")
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vmail_test"),
		postgres.WithUsername("vmail"),
		postgres.WithPassword("vmail"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start Postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get connection string: %w", err)
	}

	return container, connStr, nil
}

func setupDatabase(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	db.ConfigurePool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := testutil.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// seedMailbox creates the system folders and a few inbox messages.
func seedMailbox(s *testutil.IMAPServer) error {
	if err := s.CreateFolders("Sent", "Drafts", "Trash", "Archive"); err != nil {
		return err
	}

	now := time.Now()
	messages := []testutil.TestMessage{
		{
			MessageID: "<msg1@test>",
			Subject:   "Welcome to V-Mail",
			From:      "sender@example.com",
			To:        "test@example.com",
			Body:      "This is a test message.",
			Date:      now.Add(-2 * time.Hour),
		},
		{
			MessageID: "<msg2@test>",
			Subject:   "Meeting Tomorrow",
			From:      "colleague@example.com",
			To:        "test@example.com",
			Body:      "Don't forget about the meeting tomorrow at 2 PM.",
			Date:      now.Add(-1 * time.Hour),
		},
		{
			MessageID: "<msg3@test>",
			Subject:   "Special Report Q3",
			From:      "reports@example.com",
			To:        "test@example.com",
			Body:      "Here is the Q3 report you requested.",
			Date:      now,
		},
	}
	for _, msg := range messages {
		if _, err := s.Append("INBOX", msg); err != nil {
			return fmt.Errorf("failed to add message %s: %w", msg.MessageID, err)
		}
	}
	return nil
}

// seedSession stores the account's mail settings and returns a session token.
func seedSession(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, password string) (string, error) {
	userID, err := db.GetOrCreateUser(ctx, pool, testAccount)
	if err != nil {
		return "", err
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return "", err
	}
	encrypted, err := encryptor.Encrypt(password)
	if err != nil {
		return "", err
	}

	settings := &models.UserSettings{
		UserID:                userID,
		IMAPServerHostname:    cfg.IMAPServer,
		IMAPUsername:          testAccount,
		EncryptedIMAPPassword: encrypted,
		SMTPServerHostname:    cfg.SMTPServer,
		SMTPUsername:          testAccount,
		EncryptedSMTPPassword: encrypted,
	}
	if err := db.SaveUserSettings(ctx, pool, settings); err != nil {
		return "", err
	}

	session, err := db.CreateSession(ctx, pool, userID, cfg.SessionTTL)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}
