package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qroll/internal/api"
	"qroll/internal/models"
)

type stubSessionAPI struct {
	mu sync.Mutex

	createResp *models.LiveSession
	createErr  error
	creates    []models.CreateSessionRequest

	tokens     []string
	refreshErr error
	refreshes  atomic.Int32

	polls     [][]models.AttendanceRecord
	pollCalls atomic.Int32

	stopErr   error
	stopCalls atomic.Int32

	exportData []byte
	exportName string
	exportErr  error
}

func (s *stubSessionAPI) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, req)
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.createResp == nil {
		return &models.LiveSession{ID: "s1", JoinToken: "initial"}, nil
	}
	resp := *s.createResp
	return &resp, nil
}

func (s *stubSessionAPI) RefreshSessionToken(ctx context.Context, sessionID string) (string, error) {
	n := int(s.refreshes.Add(1))
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) == 0 {
		return "tok", nil
	}
	if n > len(s.tokens) {
		n = len(s.tokens)
	}
	return s.tokens[n-1], nil
}

func (s *stubSessionAPI) SessionAttendance(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	n := int(s.pollCalls.Add(1))
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.polls) == 0 {
		return nil, nil
	}
	if n > len(s.polls) {
		n = len(s.polls)
	}
	return s.polls[n-1], nil
}

func (s *stubSessionAPI) StopSession(ctx context.Context, sessionID string) error {
	s.stopCalls.Add(1)
	return s.stopErr
}

func (s *stubSessionAPI) ExportReport(ctx context.Context, sessionID, format string) ([]byte, string, error) {
	return s.exportData, s.exportName, s.exportErr
}

func fastOptions(t *testing.T) SessionOptions {
	return SessionOptions{
		RefreshInterval: 10 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
		DownloadDir:     t.TempDir(),
	}
}

func sampleRequest(location models.LocationPolicy) SessionRequest {
	return SessionRequest{
		Class:           &models.Class{ID: "c1", Name: "CS"},
		Subject:         &models.Subject{Code: "CS101"},
		Lecture:         &models.Lecture{ID: "l1", Title: "Intro", Duration: 60},
		DurationMinutes: 60,
		Location:        location,
	}
}

func TestCreateSession_RequiresLecture(t *testing.T) {
	stub := &stubSessionAPI{}
	c := NewSessionController(stub, NewNotices(0), fastOptions(t))

	req := sampleRequest(models.Anywhere())
	req.Lecture = nil
	_, err := c.CreateSession(context.Background(), req)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["lecture"] == "" {
		t.Fatalf("expected lecture validation error, got %v", err)
	}
	if len(stub.creates) != 0 {
		t.Fatalf("validation failure must not hit the network")
	}
	if c.ActiveTimers() != 0 {
		t.Fatalf("no timers should start")
	}
}

func TestCreateSession_DurationRange(t *testing.T) {
	stub := &stubSessionAPI{}
	c := NewSessionController(stub, NewNotices(0), fastOptions(t))
	defer c.Dispose()

	req := sampleRequest(models.Anywhere())
	req.DurationMinutes = 200
	if _, err := c.CreateSession(context.Background(), req); !IsValidation(err) {
		t.Fatalf("expected validation error for 200 minutes, got %v", err)
	}
}

func TestCreateSession_LocationPolicyOnTheWire(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions/create" {
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			bodies = append(bodies, body)
			mu.Unlock()
			w.Write([]byte(`{"id":"s1","qr_token":"q1"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := api.New(srv.URL, newMemoryStore(), 0)
	c := NewSessionController(client, NewNotices(0), SessionOptions{RefreshInterval: time.Hour, PollInterval: time.Hour})
	defer c.Dispose()

	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
		t.Fatalf("CreateSession anywhere: %v", err)
	}
	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Within(12.9, 77.6, 100))); err != nil {
		t.Fatalf("CreateSession geofence: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 create requests, got %d", len(bodies))
	}
	for _, key := range []string{"latitude", "longitude", "radius"} {
		if _, ok := bodies[0][key]; ok {
			t.Fatalf("anywhere policy must not send %s: %v", key, bodies[0])
		}
	}
	if bodies[1]["latitude"] != 12.9 || bodies[1]["longitude"] != 77.6 || bodies[1]["radius"] != 100.0 {
		t.Fatalf("geofence values not sent exactly: %v", bodies[1])
	}
	if bodies[1]["location_required"] != true {
		t.Fatalf("expected location_required for geofence: %v", bodies[1])
	}
}

func TestStopSession_ClearsStateWhenBackendFails(t *testing.T) {
	stub := &stubSessionAPI{stopErr: &api.Error{Status: 500, Message: "boom"}}
	notices := NewNotices(time.Minute)
	c := NewSessionController(stub, notices, fastOptions(t))

	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if c.ActiveTimers() != 2 {
		t.Fatalf("expected 2 timers, got %d", c.ActiveTimers())
	}

	err := c.StopSession(context.Background())
	if err == nil {
		t.Fatalf("expected the backend error to be reported")
	}
	if stub.stopCalls.Load() != 1 {
		t.Fatalf("expected one stop call, got %d", stub.stopCalls.Load())
	}
	if c.ActiveTimers() != 0 {
		t.Fatalf("expected timers torn down, got %d", c.ActiveTimers())
	}
	if c.Current() != nil || c.Attendance() != nil {
		t.Fatalf("expected local session state cleared")
	}

	// No loop keeps firing for the dead session.
	refreshes, polls := stub.refreshes.Load(), stub.pollCalls.Load()
	time.Sleep(50 * time.Millisecond)
	if stub.refreshes.Load() != refreshes || stub.pollCalls.Load() != polls {
		t.Fatalf("requests continued after stop")
	}
}

func TestStopSession_WithoutSession(t *testing.T) {
	c := NewSessionController(&stubSessionAPI{}, NewNotices(0), fastOptions(t))
	if err := c.StopSession(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestCreateSession_SecondStartKeepsOneTimerEach(t *testing.T) {
	stub := &stubSessionAPI{}
	c := NewSessionController(stub, NewNotices(0), fastOptions(t))
	defer c.Dispose()

	for i := 0; i < 3; i++ {
		if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
			t.Fatalf("CreateSession #%d: %v", i, err)
		}
		if got := c.ActiveTimers(); got != 2 {
			t.Fatalf("after start #%d expected 2 timers, got %d", i, got)
		}
	}

	c.Dispose()
	if got := c.ActiveTimers(); got != 0 {
		t.Fatalf("expected 0 timers after dispose, got %d", got)
	}
}

func TestCreateSession_ReturnsDetachedCopy(t *testing.T) {
	stub := &stubSessionAPI{
		tokens: []string{"second"},
		polls:  [][]models.AttendanceRecord{{{StudentID: "a", Name: "Ada"}}},
	}
	opts := fastOptions(t)
	opts.RefreshInterval = time.Microsecond
	opts.PollInterval = time.Microsecond
	c := NewSessionController(stub, NewNotices(0), opts)
	defer c.Dispose()

	created, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere()))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitFor(t, "loops applied", func() bool {
		current := c.Current()
		return current != nil && current.JoinToken == "second" && len(current.Attendance) == 1
	})

	if created.JoinToken != "initial" || len(created.Attendance) != 0 {
		t.Fatalf("returned session changed under the loops: %+v", created)
	}
	created.Attendance = append(created.Attendance, models.AttendanceRecord{StudentID: "x"})
	created.JoinToken = "mutated"
	if current := c.Current(); current.JoinToken != "second" || len(current.Attendance) != 1 {
		t.Fatalf("controller state follows the returned copy: %+v", current)
	}
}

func TestPollAttendance_ReplacesList(t *testing.T) {
	first := []models.AttendanceRecord{
		{StudentID: "a", Name: "Ada"},
		{StudentID: "b", Name: "Ben"},
	}
	second := []models.AttendanceRecord{
		{StudentID: "c", Name: "Cy"},
	}
	stub := &stubSessionAPI{polls: [][]models.AttendanceRecord{first, second}}
	opts := fastOptions(t)
	opts.RefreshInterval = time.Hour
	c := NewSessionController(stub, NewNotices(0), opts)
	defer c.Dispose()

	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	waitFor(t, "two polls", func() bool { return stub.pollCalls.Load() >= 2 })
	waitFor(t, "second list applied", func() bool {
		return reflect.DeepEqual(c.Attendance(), second)
	})
}

func TestRefreshToken_FailureKeepsPreviousToken(t *testing.T) {
	stub := &stubSessionAPI{refreshErr: errors.New("network down")}
	opts := fastOptions(t)
	opts.PollInterval = time.Hour
	c := NewSessionController(stub, NewNotices(0), opts)
	defer c.Dispose()

	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitFor(t, "failed refreshes", func() bool { return stub.refreshes.Load() >= 3 })

	current := c.Current()
	if current == nil || current.JoinToken != "initial" {
		t.Fatalf("expected initial token to remain, got %+v", current)
	}
	if c.ActiveTimers() != 2 {
		t.Fatalf("refresh failures must not stop the session")
	}
}

func TestRefreshToken_ReplacesTokenAndNotifies(t *testing.T) {
	stub := &stubSessionAPI{tokens: []string{"t1", "t2"}}
	opts := fastOptions(t)
	opts.PollInterval = time.Hour
	c := NewSessionController(stub, NewNotices(0), opts)
	defer c.Dispose()

	var mu sync.Mutex
	var seen []string
	c.Subscribe(func(s models.SessionSnapshot) {
		mu.Lock()
		seen = append(seen, s.JoinToken)
		mu.Unlock()
	})

	if _, err := c.CreateSession(context.Background(), sampleRequest(models.Anywhere())); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitFor(t, "token t2", func() bool {
		cur := c.Current()
		return cur != nil && cur.JoinToken == "t2"
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 || seen[0] != "initial" {
		t.Fatalf("expected subscribers to see the initial token first, got %v", seen)
	}
}

func TestCreateSession_FabricatesMissingIdentifiers(t *testing.T) {
	stub := &stubSessionAPI{createResp: &models.LiveSession{}}
	c := NewSessionController(stub, NewNotices(0), SessionOptions{RefreshInterval: time.Hour, PollInterval: time.Hour})
	defer c.Dispose()

	s, err := c.CreateSession(context.Background(), sampleRequest(models.Within(1, 2, 50)))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !s.Fabricated || s.ID == "" || s.JoinToken == "" {
		t.Fatalf("expected fabricated identifiers, got %+v", s)
	}
	if s.LectureID != "l1" || s.ClassID != "c1" || s.Duration != 60 {
		t.Fatalf("expected request fields carried over, got %+v", s)
	}
	if s.Location.Geofence == nil || s.Location.Geofence.RadiusMeters != 50 {
		t.Fatalf("expected location policy carried over, got %+v", s.Location)
	}

	// A fabricated session has nothing to close on the backend.
	if err := c.StopSession(context.Background()); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if stub.stopCalls.Load() != 0 {
		t.Fatalf("expected no backend stop for a fabricated session")
	}
}

func TestExportReport_WritesFile(t *testing.T) {
	stub := &stubSessionAPI{exportData: []byte("id,name\n"), exportName: "../../evil.csv"}
	opts := fastOptions(t)
	c := NewSessionController(stub, NewNotices(0), opts)

	path, err := c.ExportReport(context.Background(), "s1", "CSV")
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	if filepath.Dir(path) != opts.DownloadDir {
		t.Fatalf("report escaped the download dir: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "id,name\n" {
		t.Fatalf("unexpected file contents %q (%v)", data, err)
	}
}

func TestExportReport_Failures(t *testing.T) {
	notices := NewNotices(time.Minute)
	stub := &stubSessionAPI{exportErr: &api.Error{Status: 404, Message: "Session not found"}}
	c := NewSessionController(stub, notices, fastOptions(t))

	if _, err := c.ExportReport(context.Background(), "s1", "pdf"); !IsValidation(err) {
		t.Fatalf("expected validation error for pdf, got %v", err)
	}
	if _, err := c.ExportReport(context.Background(), "s1", "xlsx"); err == nil {
		t.Fatalf("expected export error")
	}
	if n, _ := notices.Latest(); n.Message != "Session not found" {
		t.Fatalf("expected server message notice, got %q", n.Message)
	}
}
