package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

// CloudClient is a testify mock of the cloud.Client interface.
type CloudClient struct {
	mock.Mock
}

func (m *CloudClient) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *CloudClient) UploadVitalSign(ctx context.Context, token string, v models.VitalSign) error {
	args := m.Called(ctx, token, v)
	return args.Error(0)
}

func (m *CloudClient) UploadBatch(ctx context.Context, token string, records []models.VitalSign) error {
	args := m.Called(ctx, token, records)
	return args.Error(0)
}

func (m *CloudClient) UploadAlarm(ctx context.Context, token string, a models.Alarm) error {
	args := m.Called(ctx, token, a)
	return args.Error(0)
}

func (m *CloudClient) DownloadHistory(ctx context.Context, token string, start, end time.Time) ([]models.VitalSign, error) {
	args := m.Called(ctx, token, start, end)
	if records, ok := args.Get(0).([]models.VitalSign); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CloudClient) CreateShare(ctx context.Context, token, recipient string, start, end time.Time, validDays int) (string, error) {
	args := m.Called(ctx, token, recipient, start, end, validDays)
	return args.String(0), args.Error(1)
}

func (m *CloudClient) FetchShared(ctx context.Context, shareToken string) ([]models.VitalSign, error) {
	args := m.Called(ctx, shareToken)
	if records, ok := args.Get(0).([]models.VitalSign); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}
