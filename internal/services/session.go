package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"qroll/internal/api"
	"qroll/internal/models"
	"qroll/internal/validate"
)

const (
	defaultRefreshInterval = 5 * time.Second
	defaultPollInterval    = 3 * time.Second
)

type SessionAPI interface {
	CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.LiveSession, error)
	RefreshSessionToken(ctx context.Context, sessionID string) (string, error)
	SessionAttendance(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	StopSession(ctx context.Context, sessionID string) error
	ExportReport(ctx context.Context, sessionID, format string) ([]byte, string, error)
}

type SessionOptions struct {
	RefreshInterval time.Duration
	PollInterval    time.Duration
	DownloadDir     string
}

// SessionRequest is the teacher's selection when starting a session.
type SessionRequest struct {
	Class           *models.Class
	Subject         *models.Subject
	Lecture         *models.Lecture
	DurationMinutes int
	Location        models.LocationPolicy
}

// SessionController owns one live attendance session at a time, with its
// token refresh loop and attendance poll loop.
type SessionController struct {
	api     SessionAPI
	notices *Notices
	opts    SessionOptions

	// lifecycle serializes create/stop/dispose. The loops never take it.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	session   *models.LiveSession
	gen       uint64
	cancel    context.CancelFunc
	listeners []func(models.SessionSnapshot)

	wg     sync.WaitGroup
	timers atomic.Int32
}

func NewSessionController(sessionAPI SessionAPI, notices *Notices, opts SessionOptions) *SessionController {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	return &SessionController{
		api:     sessionAPI,
		notices: notices,
		opts:    opts,
	}
}

// CreateSession starts a live session. Any session already running is torn
// down locally first.
func (c *SessionController) CreateSession(ctx context.Context, req SessionRequest) (*models.LiveSession, error) {
	wire, err := buildCreateRequest(req)
	if err != nil {
		c.notices.Error(err.Error())
		return nil, err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.disposeLocked()

	created, err := c.api.CreateSession(ctx, wire)
	if err != nil {
		c.notices.Error(api.MessageOf(err, "Failed to create session"))
		return nil, err
	}
	session := sessionResult(created, wire, req.Location)
	if session.Fabricated {
		log.Printf("session create: backend omitted identifiers, using local id %s", session.ID)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.session = session
	c.cancel = cancel
	snap := snapshotOf(session)
	out := copySession(session)
	c.mu.Unlock()

	id := out.ID
	c.startLoop(loopCtx, c.opts.RefreshInterval, func(ctx context.Context) { c.refreshToken(ctx, gen, id) })
	c.startLoop(loopCtx, c.opts.PollInterval, func(ctx context.Context) { c.pollAttendance(ctx, gen, id) })

	c.notify(snap)
	c.notices.Success("Session started")

	return out, nil
}

// StopSession tells the backend the session is over, then always clears the
// local session and both loops. The backend error, if any, is returned for
// reporting only.
func (c *SessionController) StopSession(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return ErrNoActiveSession
	}
	defer c.disposeLocked()

	if session.Fabricated {
		return nil
	}
	if err := c.api.StopSession(ctx, session.ID); err != nil {
		log.Printf("session stop: backend notify failed for %s: %v", session.ID, err)
		c.notices.Error(api.MessageOf(err, "Failed to notify server, session closed locally"))
		return err
	}
	c.notices.Info("Session ended")
	return nil
}

// Dispose cancels both loops and drops the local session without contacting
// the backend.
func (c *SessionController) Dispose() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.disposeLocked()
}

func (c *SessionController) disposeLocked() {
	c.mu.Lock()
	cancel := c.cancel
	had := c.session
	c.cancel = nil
	c.session = nil
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
	if had != nil {
		c.notify(models.SessionSnapshot{SessionID: had.ID, Attendance: []models.AttendanceRecord{}, Ended: true})
	}
}

// ExportReport downloads the attendance report and writes it to the download
// directory. Failures are reported once; nothing is retried.
func (c *SessionController) ExportReport(ctx context.Context, sessionID, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if sessionID == "" {
		return "", newValidationError("session", "this field is required")
	}
	if err := validate.Var(format, "oneof=csv xlsx"); err != nil {
		return "", newValidationError("format", "must be one of: csv xlsx")
	}

	data, name, err := c.api.ExportReport(ctx, sessionID, format)
	if err != nil {
		c.notices.Error(api.MessageOf(err, "Failed to export report"))
		return "", err
	}

	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("attendance-%s.%s", sessionID, format)
	}
	if err := os.MkdirAll(c.opts.DownloadDir, 0o755); err != nil {
		c.notices.Error("Failed to save report")
		return "", err
	}
	path := filepath.Join(c.opts.DownloadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.notices.Error("Failed to save report")
		return "", err
	}
	c.notices.Success("Report saved to " + path)
	return path, nil
}

// Current returns a copy of the open session, or nil.
func (c *SessionController) Current() *models.LiveSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	return copySession(c.session)
}

func (c *SessionController) Attendance() []models.AttendanceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	out := make([]models.AttendanceRecord, len(c.session.Attendance))
	copy(out, c.session.Attendance)
	return out
}

// ActiveTimers is the number of running session loops: 0 or 2.
func (c *SessionController) ActiveTimers() int {
	return int(c.timers.Load())
}

// Subscribe registers fn for every token or attendance change.
func (c *SessionController) Subscribe(fn func(models.SessionSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *SessionController) startLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	c.timers.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.timers.Add(-1)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

func (c *SessionController) refreshToken(ctx context.Context, gen uint64, sessionID string) {
	token, err := c.api.RefreshSessionToken(ctx, sessionID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("token refresh: session %s: %v", sessionID, err)
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.session == nil {
		c.mu.Unlock()
		return
	}
	c.session.JoinToken = token
	snap := snapshotOf(c.session)
	c.mu.Unlock()

	c.notify(snap)
}

func (c *SessionController) pollAttendance(ctx context.Context, gen uint64, sessionID string) {
	records, err := c.api.SessionAttendance(ctx, sessionID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("attendance poll: session %s: %v", sessionID, err)
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.session == nil {
		c.mu.Unlock()
		return
	}
	// The server list is authoritative: replace, never merge.
	attendance := make([]models.AttendanceRecord, len(records))
	copy(attendance, records)
	c.session.Attendance = attendance
	snap := snapshotOf(c.session)
	c.mu.Unlock()

	c.notify(snap)
}

func (c *SessionController) notify(snap models.SessionSnapshot) {
	c.mu.RLock()
	listeners := make([]func(models.SessionSnapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func buildCreateRequest(req SessionRequest) (models.CreateSessionRequest, error) {
	if req.Class == nil {
		return models.CreateSessionRequest{}, newValidationError("class", "Please select a class")
	}
	if req.Lecture == nil {
		return models.CreateSessionRequest{}, newValidationError("lecture", "Please select a lecture")
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = req.Lecture.Duration
	}
	if duration == 0 {
		duration = models.DefaultLectureDuration
	}
	if duration < models.MinLectureDuration || duration > models.MaxLectureDuration {
		return models.CreateSessionRequest{}, newValidationError("duration",
			fmt.Sprintf("must be between %d and %d minutes", models.MinLectureDuration, models.MaxLectureDuration))
	}

	wire := models.CreateSessionRequest{
		ClassID:   req.Class.ID,
		LectureID: req.Lecture.ID,
		Duration:  duration,
	}
	if req.Subject != nil {
		wire.SubjectCode = req.Subject.Code
	}

	if fence := req.Location.Geofence; fence != nil {
		if fields := validate.Struct(fence); fields != nil {
			return models.CreateSessionRequest{}, &ValidationError{Fields: fields}
		}
		lat, lng, radius := fence.Lat, fence.Lng, fence.RadiusMeters
		wire.LocationRequired = true
		wire.Latitude = &lat
		wire.Longitude = &lng
		wire.RadiusMeters = &radius
	}
	return wire, nil
}

// sessionResult is the single place where a create response becomes a
// LiveSession. When the backend leaves out the id or join token they are
// synthesized here and the session is marked Fabricated.
func sessionResult(created *models.LiveSession, wire models.CreateSessionRequest, location models.LocationPolicy) *models.LiveSession {
	s := copySession(created)
	if s.ID == "" {
		s.ID = "local-" + uuid.NewString()
		s.Fabricated = true
	}
	if s.JoinToken == "" {
		s.JoinToken = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		s.Fabricated = true
	}
	if s.ClassID == "" {
		s.ClassID = wire.ClassID
	}
	if s.SubjectCode == "" {
		s.SubjectCode = wire.SubjectCode
	}
	if s.LectureID == "" {
		s.LectureID = wire.LectureID
	}
	if s.Duration == 0 {
		s.Duration = wire.Duration
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Location.IsAnywhere() {
		s.Location = location
	}
	return s
}

func copySession(s *models.LiveSession) *models.LiveSession {
	if s == nil {
		return &models.LiveSession{}
	}
	out := *s
	out.Attendance = make([]models.AttendanceRecord, len(s.Attendance))
	copy(out.Attendance, s.Attendance)
	if s.Location.Geofence != nil {
		fence := *s.Location.Geofence
		out.Location.Geofence = &fence
	}
	return &out
}

func snapshotOf(s *models.LiveSession) models.SessionSnapshot {
	attendance := make([]models.AttendanceRecord, len(s.Attendance))
	copy(attendance, s.Attendance)
	return models.SessionSnapshot{
		SessionID:  s.ID,
		JoinToken:  s.JoinToken,
		Attendance: attendance,
	}
}
