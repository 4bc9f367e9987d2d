package api

import (
	"context"
	"encoding/json"
	"net/url"

	"qroll/internal/models"
)

func (c *Client) ListClasses(ctx context.Context) ([]models.Class, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/classes", &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		Classes []models.Class `json:"classes"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Classes != nil {
		return wrapped.Classes, nil
	}
	var classes []models.Class
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, &Error{Message: "Invalid response from server: " + err.Error()}
	}
	return classes, nil
}

func (c *Client) CreateClass(ctx context.Context, req models.CreateClassRequest) error {
	return c.Post(ctx, "/classes/create", req, nil)
}

func (c *Client) AddSubject(ctx context.Context, classID string, req models.CreateSubjectRequest) error {
	return c.Post(ctx, "/classes/"+url.PathEscape(classID)+"/subjects", req, nil)
}

func (c *Client) AddLecture(ctx context.Context, classID, subjectCode string, req models.CreateLectureRequest) error {
	path := "/classes/" + url.PathEscape(classID) + "/subjects/" + url.PathEscape(subjectCode) + "/lectures"
	return c.Post(ctx, path, req, nil)
}
