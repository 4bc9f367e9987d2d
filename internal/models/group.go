package models

type ClassGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ActiveLecture struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	GroupID         string `json:"group_id"`
	GroupName       string `json:"group_name"`
	AttendanceCount int    `json:"attendance_count"`
	Active          bool   `json:"active"`
}

type ActiveLectureResponse struct {
	Active  bool           `json:"active"`
	Lecture *ActiveLecture `json:"lecture,omitempty"`
}

// JoinableSession is one discovery entry. A failed lookup keeps the group in the
// list with Available=false and Error set.
type JoinableSession struct {
	Group           ClassGroup `json:"group"`
	LectureID       string     `json:"lecture_id,omitempty"`
	Title           string     `json:"title,omitempty"`
	AttendanceCount int        `json:"attendance_count"`
	Available       bool       `json:"available"`
	Joined          bool       `json:"joined"`
	Error           string     `json:"error,omitempty"`
}

type QRResponse struct {
	QRToken string `json:"qr_token"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type JoinRequest struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
