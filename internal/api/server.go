package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/vmail/webclient/internal/auth"
	"github.com/vdavid/vmail/webclient/internal/config"
	"github.com/vdavid/vmail/webclient/internal/crypto"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/imap"
	ws "github.com/vdavid/vmail/webclient/internal/websocket"
)

const maxConnectionsPerUser = 10

// NewServer wires the mail service, the session store and the handlers into
// one HTTP handler. Close the returned service when the server stops.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) (http.Handler, *imap.Service, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return nil, nil, err
	}

	imapPool := imap.NewPool(cfg.IMAPMaxWorkers, cfg.IMAPUseTLS)
	imapService := imap.NewService(imapPool, imap.NewStoredAccounts(dbPool, encryptor), imap.SMTPSender{}, cfg.FetchLimit)
	gateways := func(userID string) gateway.Gateway { return imapService.ForUser(userID) }

	validator := auth.NewSessionValidator(dbPool)
	hub := ws.NewHub(maxConnectionsPerUser)

	handler := NewRouter(Handlers{
		Validator: validator,
		Query:     NewQueryHandler(gateways),
		Login: NewLoginHandler(dbPool, encryptor, imapService,
			MailServers{IMAP: cfg.IMAPServer, SMTP: cfg.SMTPServer}, cfg.SessionTTL),
		WebSocket: NewWebSocketHandler(validator, gateways, imapService, hub, cfg.PageSize),
		Name:      "V-Mail",
	})

	return handler, imapService, nil
}
