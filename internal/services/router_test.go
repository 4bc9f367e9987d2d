package services

import (
	"testing"

	"qroll/internal/models"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		user *models.User
		want Destination
	}{
		{"no user", nil, DestinationSignIn},
		{"teacher", &models.User{Role: models.RoleTeacher}, DestinationTeacherHome},
		{"student", &models.User{Role: models.RoleStudent}, DestinationStudentHome},
		{"no role", &models.User{}, DestinationRoleSelection},
		{"unknown role", &models.User{Role: models.Role("admin")}, DestinationRoleSelection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Route(tc.user); got != tc.want {
				t.Fatalf("Route() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if models.ParseRole(" Teacher ") != models.RoleTeacher {
		t.Fatalf("expected teacher")
	}
	if models.ParseRole("admin") != models.RoleNone {
		t.Fatalf("expected unknown role to map to none")
	}
}
