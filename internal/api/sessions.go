package api

import (
	"context"
	"encoding/json"
	"net/url"

	"qroll/internal/models"
)

// CreateSession starts a live session. The backend may wrap the session in
// {"session": {...}} or return it bare; fields it omits stay zero.
func (c *Client) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.LiveSession, error) {
	var raw json.RawMessage
	if err := c.Post(ctx, "/sessions/create", req, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Session *models.LiveSession `json:"session"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Session != nil {
		return wrapped.Session, nil
	}
	var session models.LiveSession
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, &Error{Message: "Invalid response from server: " + err.Error()}
		}
	}
	return &session, nil
}

func (c *Client) RefreshSessionToken(ctx context.Context, sessionID string) (string, error) {
	var resp models.RefreshTokenResponse
	if err := c.Post(ctx, "/sessions/"+url.PathEscape(sessionID)+"/refresh-token", nil, &resp); err != nil {
		return "", err
	}
	if resp.QRToken == "" {
		return "", &Error{Message: "Refresh response did not include a token"}
	}
	return resp.QRToken, nil
}

func (c *Client) SessionAttendance(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var resp models.AttendanceResponse
	if err := c.Get(ctx, "/sessions/"+url.PathEscape(sessionID)+"/attendance", &resp); err != nil {
		return nil, err
	}
	if resp.Attendance == nil {
		return []models.AttendanceRecord{}, nil
	}
	return resp.Attendance, nil
}

func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	return c.Post(ctx, "/sessions/"+url.PathEscape(sessionID)+"/end", nil, nil)
}

func (c *Client) ExportReport(ctx context.Context, sessionID, format string) ([]byte, string, error) {
	path := "/sessions/" + url.PathEscape(sessionID) + "/export?format=" + url.QueryEscape(format)
	return c.Download(ctx, path)
}
