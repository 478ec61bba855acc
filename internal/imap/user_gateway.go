package imap

import (
	"context"

	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// UserGateway is the Service bound to one user, usable wherever a gateway.Gateway is.
type UserGateway struct {
	service *Service
	userID  string
}

// ForUser binds the service to userID.
func (s *Service) ForUser(userID string) *UserGateway {
	return &UserGateway{service: s, userID: userID}
}

func (g *UserGateway) FetchAll(ctx context.Context) (models.Snapshot, error) {
	return g.service.FetchAll(ctx, g.userID)
}

func (g *UserGateway) SendEmail(ctx context.Context, draft models.Draft) error {
	return g.service.SendEmail(ctx, g.userID, draft)
}

func (g *UserGateway) SaveEmail(ctx context.Context, targetFolder string, draft models.Draft) (string, error) {
	return g.service.SaveEmail(ctx, g.userID, targetFolder, draft)
}

func (g *UserGateway) MoveToBin(ctx context.Context, folder, id string) error {
	return g.service.MoveToBin(ctx, g.userID, folder, id)
}

func (g *UserGateway) DeleteMessage(ctx context.Context, folder, id string) error {
	return g.service.DeleteMessage(ctx, g.userID, folder, id)
}

func (g *UserGateway) MoveTo(ctx context.Context, folder, id, newFolder string) error {
	return g.service.MoveTo(ctx, g.userID, folder, id, newFolder)
}

func (g *UserGateway) CreateFolder(ctx context.Context, name string) error {
	return g.service.CreateFolder(ctx, g.userID, name)
}

var _ gateway.Gateway = (*UserGateway)(nil)
