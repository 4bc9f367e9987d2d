package models

import "time"

const (
	MinLectureDuration     = 15
	MaxLectureDuration     = 180
	DefaultLectureDuration = 60
)

type Class struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	JoinCode    string    `json:"join_code,omitempty"`
	Subjects    []Subject `json:"subjects"`
}

// Subject returns the subject with the given code, or nil.
func (c *Class) Subject(code string) *Subject {
	for i := range c.Subjects {
		if c.Subjects[i].Code == code {
			return &c.Subjects[i]
		}
	}
	return nil
}

type Subject struct {
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Lectures    []Lecture `json:"lectures"`
}

func (s *Subject) Lecture(id string) *Lecture {
	for i := range s.Lectures {
		if s.Lectures[i].ID == id {
			return &s.Lectures[i]
		}
	}
	return nil
}

type Lecture struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Duration      int        `json:"duration"`
	CreatedAt     time.Time  `json:"created_at"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
}

type CreateClassRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type CreateSubjectRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=20"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type CreateLectureRequest struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Description   string     `json:"description,omitempty" validate:"max=1000"`
	Duration      int        `json:"duration" validate:"min=15,max=180"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
}
