package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qroll/internal/api"
	"qroll/internal/models"
)

type stubJoinAPI struct {
	groups    []models.ClassGroup
	groupsErr error
	lectures  map[string]*models.ActiveLecture
	failing   map[string]bool

	joinGate chan struct{}
	joinErr  error

	mu        sync.Mutex
	lastToken string
	lastCoord *models.Coordinates
	qrCalls   atomic.Int32
	joinCalls atomic.Int32
}

func (s *stubJoinAPI) MyGroups(ctx context.Context) ([]models.ClassGroup, error) {
	return s.groups, s.groupsErr
}

func (s *stubJoinAPI) ActiveLecture(ctx context.Context, groupID string) (*models.ActiveLecture, error) {
	if s.failing[groupID] {
		return nil, &api.Error{Status: 500, Message: "lookup failed"}
	}
	return s.lectures[groupID], nil
}

func (s *stubJoinAPI) LectureQR(ctx context.Context, lectureID string) (string, error) {
	s.qrCalls.Add(1)
	return "qr-" + lectureID, nil
}

func (s *stubJoinAPI) JoinLecture(ctx context.Context, qrToken string, coords *models.Coordinates) error {
	s.joinCalls.Add(1)
	if s.joinGate != nil {
		<-s.joinGate
	}
	s.mu.Lock()
	s.lastToken = qrToken
	s.lastCoord = coords
	s.mu.Unlock()
	return s.joinErr
}

func threeGroups() *stubJoinAPI {
	return &stubJoinAPI{
		groups: []models.ClassGroup{{ID: "g1", Name: "A"}, {ID: "g2", Name: "B"}, {ID: "g3", Name: "C"}},
		lectures: map[string]*models.ActiveLecture{
			"g1": {ID: "l1", Title: "Algebra", AttendanceCount: 3},
			"g2": {ID: "l2", Title: "Biology"},
			"g3": {ID: "l3", Title: "Chemistry"},
		},
		failing: map[string]bool{},
	}
}

func TestDiscover_OneLookupFails(t *testing.T) {
	stub := threeGroups()
	stub.failing["g2"] = true
	c := NewJoinController(stub, NewNotices(0))

	sessions, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected an entry per group, got %d", len(sessions))
	}

	available := map[string]bool{}
	for _, s := range sessions {
		if s.Available {
			available[s.LectureID] = true
		}
		if s.Group.ID == "g2" && (s.Available || s.Error == "") {
			t.Fatalf("failed group should be degraded, got %+v", s)
		}
	}
	if !available["l1"] || !available["l3"] || len(available) != 2 {
		t.Fatalf("expected l1 and l3 to be joinable, got %v", available)
	}
}

func TestDiscover_GroupsFailure(t *testing.T) {
	stub := &stubJoinAPI{groupsErr: errors.New("offline")}
	c := NewJoinController(stub, NewNotices(0))
	if _, err := c.Discover(context.Background()); err == nil {
		t.Fatalf("expected error when groups cannot be listed")
	}
}

func TestJoin_TwiceSendsOneRequest(t *testing.T) {
	stub := threeGroups()
	c := NewJoinController(stub, NewNotices(0))
	c.Discover(context.Background())

	if err := c.Join(context.Background(), "l1", nil); err != nil {
		t.Fatalf("first Join: %v", err)
	}
	if err := c.Join(context.Background(), "l1", nil); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	if n := stub.joinCalls.Load(); n != 1 {
		t.Fatalf("expected exactly one join request, got %d", n)
	}

	s, _ := c.Session("l1")
	if !s.Joined || s.AttendanceCount != 4 {
		t.Fatalf("expected joined with optimistic count 4, got %+v", s)
	}
}

func TestJoin_ConcurrentTriggersSendOneRequest(t *testing.T) {
	stub := threeGroups()
	stub.joinGate = make(chan struct{})
	c := NewJoinController(stub, NewNotices(0))
	c.Discover(context.Background())

	first := make(chan error, 1)
	go func() { first <- c.Join(context.Background(), "l2", nil) }()
	waitFor(t, "first join in flight", func() bool { return stub.joinCalls.Load() == 1 })

	if err := c.Join(context.Background(), "l2", nil); !errors.Is(err, ErrJoinInProgress) {
		t.Fatalf("expected ErrJoinInProgress, got %v", err)
	}

	close(stub.joinGate)
	select {
	case err := <-first:
		if err != nil {
			t.Fatalf("first Join: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first join never finished")
	}
	if n := stub.joinCalls.Load(); n != 1 {
		t.Fatalf("expected exactly one join request, got %d", n)
	}
}

func TestJoin_UnknownSessionNoNetwork(t *testing.T) {
	stub := threeGroups()
	c := NewJoinController(stub, NewNotices(0))
	c.Discover(context.Background())

	if err := c.Join(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if stub.qrCalls.Load() != 0 || stub.joinCalls.Load() != 0 {
		t.Fatalf("unknown session must not hit the network")
	}
}

func TestJoin_SendsTokenAndCoordinates(t *testing.T) {
	stub := threeGroups()
	c := NewJoinController(stub, NewNotices(0))
	c.Discover(context.Background())

	coords := &models.Coordinates{Latitude: 12.9, Longitude: 77.6}
	if err := c.Join(context.Background(), "l3", coords); err != nil {
		t.Fatalf("Join: %v", err)
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.lastToken != "qr-l3" {
		t.Fatalf("expected freshly fetched token, got %q", stub.lastToken)
	}
	if stub.lastCoord == nil || *stub.lastCoord != *coords {
		t.Fatalf("expected coordinates forwarded, got %+v", stub.lastCoord)
	}
}

func TestJoin_FailureSurfacesMessageAndAllowsRetry(t *testing.T) {
	stub := threeGroups()
	stub.joinErr = &api.Error{Status: 403, Message: "Outside the allowed area"}
	notices := NewNotices(time.Minute)
	c := NewJoinController(stub, notices)
	c.Discover(context.Background())

	if err := c.Join(context.Background(), "l1", nil); err == nil {
		t.Fatalf("expected join failure")
	}
	if n, _ := notices.Latest(); n.Message != "Outside the allowed area" {
		t.Fatalf("expected server message, got %q", n.Message)
	}
	if c.Joined("l1") {
		t.Fatalf("failed join must not be recorded")
	}

	stub.joinErr = errors.New("plain error")
	c.Join(context.Background(), "l1", nil)
	if n, _ := notices.Latest(); n.Message != "Failed to join session" {
		t.Fatalf("expected generic message, got %q", n.Message)
	}
	if stub.joinCalls.Load() != 2 {
		t.Fatalf("expected retry after failure to reach the network")
	}
}
