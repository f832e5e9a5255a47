// Package cloud implements the HTTP client for the remote vital-sign sync
// service.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

// ErrUnauthorized is returned when the service rejects the session token.
// The sync session self-demotes to logged-out when it sees this error.
var ErrUnauthorized = errors.New("cloud: unauthorized")

// Client defines the remote sync service operations. Every call except
// Login and FetchShared carries the session token.
type Client interface {
	Login(ctx context.Context, username, password string) (string, error)
	UploadVitalSign(ctx context.Context, token string, v models.VitalSign) error
	UploadBatch(ctx context.Context, token string, records []models.VitalSign) error
	UploadAlarm(ctx context.Context, token string, a models.Alarm) error
	DownloadHistory(ctx context.Context, token string, start, end time.Time) ([]models.VitalSign, error)
	CreateShare(ctx context.Context, token, recipient string, start, end time.Time, validDays int) (string, error)
	FetchShared(ctx context.Context, shareToken string) ([]models.VitalSign, error)
}

// RestClient is the resty-backed implementation of Client.
type RestClient struct {
	http     *resty.Client
	deviceID string
}

// NewRestClient builds a client for the given server. The API key is a
// static credential sent on every request; the session token is supplied
// per call by the sync session.
func NewRestClient(serverURL, apiKey, deviceID string, timeout time.Duration) *RestClient {
	client := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(timeout).
		SetHeader("X-API-Key", apiKey).
		SetHeader("User-Agent", "vitalsync-agent/1.0")

	return &RestClient{
		http:     client,
		deviceID: deviceID,
	}
}

type batchPayload struct {
	DeviceID string             `json:"deviceId"`
	Data     []models.VitalSign `json:"data"`
}

type vitalSignPayload struct {
	models.VitalSign
	DeviceID string `json:"deviceId"`
}

type alarmPayload struct {
	models.Alarm
	DeviceID string `json:"deviceId"`
}

type historyResponse struct {
	Data []models.VitalSign `json:"data"`
}

type shareRequest struct {
	DeviceID       string `json:"deviceId"`
	RecipientEmail string `json:"recipientEmail"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	ValidDays      int    `json:"validDays"`
}

type shareResponse struct {
	ShareLink string `json:"shareLink"`
}

// Login authenticates the user and returns the session token.
func (c *RestClient) Login(ctx context.Context, username, password string) (string, error) {
	var auth models.AuthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.AuthRequest{Username: username, Password: password, DeviceID: c.deviceID}).
		SetResult(&auth).
		Post("/api/auth/login")
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	if auth.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return auth.Token, nil
}

// UploadVitalSign sends a single reading.
func (c *RestClient) UploadVitalSign(ctx context.Context, token string, v models.VitalSign) error {
	resp, err := c.authed(ctx, token).
		SetBody(vitalSignPayload{VitalSign: v, DeviceID: c.deviceID}).
		Post("/api/vitalsign/upload")
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	return checkStatus(resp)
}

// UploadBatch sends all records as one remote write.
func (c *RestClient) UploadBatch(ctx context.Context, token string, records []models.VitalSign) error {
	resp, err := c.authed(ctx, token).
		SetBody(batchPayload{DeviceID: c.deviceID, Data: records}).
		Post("/api/vitalsign/batch")
	if err != nil {
		return fmt.Errorf("batch upload request failed: %w", err)
	}
	return checkStatus(resp)
}

// UploadAlarm sends a single alarm event.
func (c *RestClient) UploadAlarm(ctx context.Context, token string, a models.Alarm) error {
	resp, err := c.authed(ctx, token).
		SetBody(alarmPayload{Alarm: a, DeviceID: c.deviceID}).
		Post("/api/alarm/upload")
	if err != nil {
		return fmt.Errorf("alarm upload request failed: %w", err)
	}
	return checkStatus(resp)
}

// DownloadHistory fetches remote records in [start, end].
func (c *RestClient) DownloadHistory(ctx context.Context, token string, start, end time.Time) ([]models.VitalSign, error) {
	var history historyResponse
	resp, err := c.authed(ctx, token).
		SetQueryParams(map[string]string{
			"deviceId":  c.deviceID,
			"startTime": start.Format(time.RFC3339),
			"endTime":   end.Format(time.RFC3339),
		}).
		SetResult(&history).
		Get("/api/vitalsign/history")
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return history.Data, nil
}

// CreateShare asks the service to share a data range with a recipient and
// returns the share link.
func (c *RestClient) CreateShare(ctx context.Context, token, recipient string, start, end time.Time, validDays int) (string, error) {
	var share shareResponse
	resp, err := c.authed(ctx, token).
		SetBody(shareRequest{
			DeviceID:       c.deviceID,
			RecipientEmail: recipient,
			StartTime:      start.Format(time.RFC3339),
			EndTime:        end.Format(time.RFC3339),
			ValidDays:      validDays,
		}).
		SetResult(&share).
		Post("/api/share/create")
	if err != nil {
		return "", fmt.Errorf("share request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	return share.ShareLink, nil
}

// FetchShared retrieves a shared data range using a share token instead of
// a session token.
func (c *RestClient) FetchShared(ctx context.Context, shareToken string) ([]models.VitalSign, error) {
	var history historyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", shareToken).
		SetResult(&history).
		Get("/api/share/data")
	if err != nil {
		return nil, fmt.Errorf("shared data request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return history.Data, nil
}

func (c *RestClient) authed(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func checkStatus(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.IsError():
		return fmt.Errorf("cloud: unexpected status %d: %s", resp.StatusCode(), resp.String())
	default:
		return nil
	}
}
