package services

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"qroll/internal/api"
	"qroll/internal/models"
)

const discoveryConcurrency = 4

type JoinAPI interface {
	MyGroups(ctx context.Context) ([]models.ClassGroup, error)
	ActiveLecture(ctx context.Context, groupID string) (*models.ActiveLecture, error)
	LectureQR(ctx context.Context, lectureID string) (string, error)
	JoinLecture(ctx context.Context, qrToken string, coords *models.Coordinates) error
}

// JoinController is the student side: find running sessions, join them once.
type JoinController struct {
	api     JoinAPI
	notices *Notices

	mu       sync.Mutex
	sessions map[string]*models.JoinableSession
	joined   map[string]bool
	pending  map[string]bool
}

func NewJoinController(joinAPI JoinAPI, notices *Notices) *JoinController {
	return &JoinController{
		api:      joinAPI,
		notices:  notices,
		sessions: make(map[string]*models.JoinableSession),
		joined:   make(map[string]bool),
		pending:  make(map[string]bool),
	}
}

// Discover returns one entry per class group. A group whose lookup fails stays
// in the list as unavailable; only failing to list the groups is an error.
func (c *JoinController) Discover(ctx context.Context) ([]models.JoinableSession, error) {
	groups, err := c.api.MyGroups(ctx)
	if err != nil {
		c.notices.Error(api.MessageOf(err, "Failed to load your classes"))
		return nil, err
	}

	results := make([]models.JoinableSession, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryConcurrency)

	for i, group := range groups {
		g.Go(func() error {
			entry := models.JoinableSession{Group: group}
			lecture, err := c.api.ActiveLecture(gctx, group.ID)
			switch {
			case err != nil:
				log.Printf("discovery: group %s: %v", group.ID, err)
				entry.Error = api.MessageOf(err, "Unavailable")
			case lecture != nil:
				entry.LectureID = lecture.ID
				entry.Title = lecture.Title
				entry.AttendanceCount = lecture.AttendanceCount
				entry.Available = true
			}
			results[i] = entry
			return nil
		})
	}
	g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions = make(map[string]*models.JoinableSession, len(results))
	for i := range results {
		entry := &results[i]
		if !entry.Available {
			continue
		}
		entry.Joined = c.joined[entry.LectureID]
		stored := *entry
		c.sessions[entry.LectureID] = &stored
	}

	out := make([]models.JoinableSession, len(results))
	copy(out, results)
	return out, nil
}

// Join registers attendance for a discovered session. Unknown, already joined
// and in-flight sessions are rejected without a request.
func (c *JoinController) Join(ctx context.Context, sessionID string, coords *models.Coordinates) error {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	switch {
	case !ok:
		c.mu.Unlock()
		return ErrUnknownSession
	case c.joined[sessionID]:
		c.mu.Unlock()
		return ErrAlreadyJoined
	case c.pending[sessionID]:
		c.mu.Unlock()
		return ErrJoinInProgress
	}
	c.pending[sessionID] = true
	title := session.Title
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, sessionID)
		c.mu.Unlock()
	}()

	token, err := c.api.LectureQR(ctx, sessionID)
	if err != nil {
		c.notices.Error(api.MessageOf(err, "Failed to join session"))
		return err
	}
	if err := c.api.JoinLecture(ctx, token, coords); err != nil {
		c.notices.Error(api.MessageOf(err, "Failed to join session"))
		return err
	}

	c.mu.Lock()
	c.joined[sessionID] = true
	if s, ok := c.sessions[sessionID]; ok {
		s.Joined = true
		s.AttendanceCount++
	}
	c.mu.Unlock()

	c.notices.Success("Joined " + title)
	return nil
}

// Session returns the locally known state of a discovered session.
func (c *JoinController) Session(sessionID string) (models.JoinableSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return models.JoinableSession{}, false
	}
	return *s, true
}

func (c *JoinController) Joined(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[sessionID]
}
