package api

import (
	"context"
	"encoding/json"
	"net/url"

	"qroll/internal/models"
)

func (c *Client) MyGroups(ctx context.Context) ([]models.ClassGroup, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/class-groups/student/my-groups", &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		Groups []models.ClassGroup `json:"groups"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Groups != nil {
		return wrapped.Groups, nil
	}
	var groups []models.ClassGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, &Error{Message: "Invalid response from server: " + err.Error()}
	}
	return groups, nil
}

// ActiveLecture returns the group's running lecture, or nil when there is none.
func (c *Client) ActiveLecture(ctx context.Context, groupID string) (*models.ActiveLecture, error) {
	var resp models.ActiveLectureResponse
	if err := c.Get(ctx, "/lectures/active/"+url.PathEscape(groupID), &resp); err != nil {
		return nil, err
	}
	if !resp.Active || resp.Lecture == nil {
		return nil, nil
	}
	return resp.Lecture, nil
}

func (c *Client) LectureQR(ctx context.Context, lectureID string) (string, error) {
	var resp models.QRResponse
	if err := c.Get(ctx, "/lectures/"+url.PathEscape(lectureID)+"/qr", &resp); err != nil {
		return "", err
	}
	if resp.QRToken == "" {
		return "", &Error{Message: "Session has no join token"}
	}
	return resp.QRToken, nil
}

func (c *Client) JoinLecture(ctx context.Context, qrToken string, coords *models.Coordinates) error {
	var req models.JoinRequest
	if coords != nil {
		req.Latitude = &coords.Latitude
		req.Longitude = &coords.Longitude
	}
	return c.Post(ctx, "/lectures/join/"+url.PathEscape(qrToken), req, nil)
}
