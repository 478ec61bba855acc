// Package mocks holds testify mocks of the interfaces handlers depend on.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vdavid/vmail/webclient/internal/gateway"
	"github.com/vdavid/vmail/webclient/internal/models"
)

// Gateway is a mock of gateway.Gateway.
type Gateway struct {
	mock.Mock
}

// NewGateway creates a Gateway whose expectations are asserted when the test ends.
func NewGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *Gateway {
	m := &Gateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Gateway) FetchAll(ctx context.Context) (models.Snapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(models.Snapshot)
	return snapshot, args.Error(1)
}

func (m *Gateway) SendEmail(ctx context.Context, draft models.Draft) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *Gateway) SaveEmail(ctx context.Context, targetFolder string, draft models.Draft) (string, error) {
	args := m.Called(ctx, targetFolder, draft)
	return args.String(0), args.Error(1)
}

func (m *Gateway) MoveToBin(ctx context.Context, folder, id string) error {
	return m.Called(ctx, folder, id).Error(0)
}

func (m *Gateway) DeleteMessage(ctx context.Context, folder, id string) error {
	return m.Called(ctx, folder, id).Error(0)
}

func (m *Gateway) MoveTo(ctx context.Context, folder, id, newFolder string) error {
	return m.Called(ctx, folder, id, newFolder).Error(0)
}

func (m *Gateway) CreateFolder(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

var _ gateway.Gateway = (*Gateway)(nil)
