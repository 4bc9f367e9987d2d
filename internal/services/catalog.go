package services

import (
	"context"
	"fmt"
	"sync"

	"qroll/internal/models"
	"qroll/internal/validate"
)

type CatalogAPI interface {
	ListClasses(ctx context.Context) ([]models.Class, error)
	CreateClass(ctx context.Context, req models.CreateClassRequest) error
	AddSubject(ctx context.Context, classID string, req models.CreateSubjectRequest) error
	AddLecture(ctx context.Context, classID, subjectCode string, req models.CreateLectureRequest) error
}

// Catalog is a read-through cache of the teacher's classes. Every mutation is
// followed by a full re-fetch.
type Catalog struct {
	api CatalogAPI

	mu      sync.Mutex
	classes []models.Class
	loaded  bool
}

func NewCatalog(catalogAPI CatalogAPI) *Catalog {
	return &Catalog{api: catalogAPI}
}

func (c *Catalog) Classes(ctx context.Context) ([]models.Class, error) {
	c.mu.Lock()
	if c.loaded {
		out := append([]models.Class(nil), c.classes...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

func (c *Catalog) Refresh(ctx context.Context) ([]models.Class, error) {
	classes, err := c.api.ListClasses(ctx)
	if err != nil {
		c.Invalidate()
		return nil, err
	}

	c.mu.Lock()
	c.classes = classes
	c.loaded = true
	c.mu.Unlock()
	return append([]models.Class(nil), classes...), nil
}

func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.classes = nil
	c.mu.Unlock()
}

func (c *Catalog) Class(ctx context.Context, classID string) (*models.Class, error) {
	classes, err := c.Classes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range classes {
		if classes[i].ID == classID {
			return &classes[i], nil
		}
	}
	return nil, newValidationError("class", fmt.Sprintf("class %q not found", classID))
}

// Resolve looks up the class, subject and lecture a session is started for.
// An empty lectureID yields a nil lecture so the session validation can reject it.
func (c *Catalog) Resolve(ctx context.Context, classID, subjectCode, lectureID string) (*models.Class, *models.Subject, *models.Lecture, error) {
	class, err := c.Class(ctx, classID)
	if err != nil {
		return nil, nil, nil, err
	}
	subject := class.Subject(subjectCode)
	if subject == nil {
		return class, nil, nil, newValidationError("subject", fmt.Sprintf("subject %q not found", subjectCode))
	}
	if lectureID == "" {
		return class, subject, nil, nil
	}
	lecture := subject.Lecture(lectureID)
	if lecture == nil {
		return class, subject, nil, newValidationError("lecture", fmt.Sprintf("lecture %q not found", lectureID))
	}
	return class, subject, lecture, nil
}

func (c *Catalog) CreateClass(ctx context.Context, req models.CreateClassRequest) error {
	if fields := validate.Struct(req); fields != nil {
		return &ValidationError{Fields: fields}
	}
	if err := c.api.CreateClass(ctx, req); err != nil {
		return err
	}
	_, err := c.Refresh(ctx)
	return err
}

func (c *Catalog) AddSubject(ctx context.Context, classID string, req models.CreateSubjectRequest) error {
	if fields := validate.Struct(req); fields != nil {
		return &ValidationError{Fields: fields}
	}
	class, err := c.Class(ctx, classID)
	if err != nil {
		return err
	}
	if class.Subject(req.Code) != nil {
		return newValidationError("code", "a subject with this code already exists in the class")
	}
	if err := c.api.AddSubject(ctx, classID, req); err != nil {
		return err
	}
	_, err = c.Refresh(ctx)
	return err
}

func (c *Catalog) AddLecture(ctx context.Context, classID, subjectCode string, req models.CreateLectureRequest) error {
	if req.Duration == 0 {
		req.Duration = models.DefaultLectureDuration
	}
	if fields := validate.Struct(req); fields != nil {
		return &ValidationError{Fields: fields}
	}
	class, err := c.Class(ctx, classID)
	if err != nil {
		return err
	}
	if class.Subject(subjectCode) == nil {
		return newValidationError("subject", fmt.Sprintf("subject %q not found", subjectCode))
	}
	if err := c.api.AddLecture(ctx, classID, subjectCode, req); err != nil {
		return err
	}
	_, err = c.Refresh(ctx)
	return err
}
