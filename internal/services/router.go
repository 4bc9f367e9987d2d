package services

import "qroll/internal/models"

type Destination string

const (
	DestinationSignIn        Destination = "sign-in"
	DestinationRoleSelection Destination = "role-selection"
	DestinationTeacherHome   Destination = "teacher-home"
	DestinationStudentHome   Destination = "student-home"
)

// Route picks the experience for an authenticated user.
func Route(user *models.User) Destination {
	if user == nil {
		return DestinationSignIn
	}
	switch user.Role {
	case models.RoleTeacher:
		return DestinationTeacherHome
	case models.RoleStudent:
		return DestinationStudentHome
	case models.RoleNone:
		return DestinationRoleSelection
	default:
		return DestinationRoleSelection
	}
}
