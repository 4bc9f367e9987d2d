package models

import "time"

// LocationPolicy is either "anywhere" (Geofence nil) or a geofence around a point.
type LocationPolicy struct {
	Geofence *Geofence `json:"geofence,omitempty"`
}

type Geofence struct {
	Lat          float64 `json:"lat" validate:"min=-90,max=90"`
	Lng          float64 `json:"lng" validate:"min=-180,max=180"`
	RadiusMeters float64 `json:"radius_meters" validate:"gt=0"`
}

func Anywhere() LocationPolicy {
	return LocationPolicy{}
}

func Within(lat, lng, radiusMeters float64) LocationPolicy {
	return LocationPolicy{Geofence: &Geofence{Lat: lat, Lng: lng, RadiusMeters: radiusMeters}}
}

func (p LocationPolicy) IsAnywhere() bool {
	return p.Geofence == nil
}

// CreateSessionRequest is the wire body of POST /sessions/create. Coordinates are
// omitted entirely for the "anywhere" policy.
type CreateSessionRequest struct {
	ClassID          string   `json:"class_id"`
	SubjectCode      string   `json:"subject_code"`
	LectureID        string   `json:"lecture_id"`
	Duration         int      `json:"duration"`
	LocationRequired bool     `json:"location_required"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	RadiusMeters     *float64 `json:"radius,omitempty"`
}

type LiveSession struct {
	ID          string             `json:"id"`
	ClassID     string             `json:"class_id"`
	SubjectCode string             `json:"subject_code"`
	LectureID   string             `json:"lecture_id"`
	JoinToken   string             `json:"qr_token"`
	Location    LocationPolicy     `json:"location"`
	Duration    int                `json:"duration"`
	StartedAt   time.Time          `json:"started_at"`
	Attendance  []AttendanceRecord `json:"attendance"`

	// Fabricated is set when the backend response lacked an id or token and the
	// client filled them in.
	Fabricated bool `json:"-"`
}

type AttendanceRecord struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joined_at"`
}

type RefreshTokenResponse struct {
	QRToken string `json:"qr_token"`
}

type AttendanceResponse struct {
	Attendance []AttendanceRecord `json:"attendance"`
}

// WebSocket message pushed to projector displays.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SessionSnapshot struct {
	SessionID  string             `json:"session_id"`
	JoinToken  string             `json:"join_token"`
	Attendance []AttendanceRecord `json:"attendance"`
	Ended      bool               `json:"ended"`
}
