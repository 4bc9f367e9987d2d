package validate

import (
	"testing"

	"qroll/internal/models"
)

func TestStruct_LectureDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		wantErr  bool
	}{
		{"lower bound", 15, false},
		{"default", 60, false},
		{"upper bound", 180, false},
		{"too short", 14, true},
		{"too long", 181, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := Struct(models.CreateLectureRequest{Title: "Intro", Duration: tc.duration})
			_, hasErr := fields["duration"]
			if hasErr != tc.wantErr {
				t.Fatalf("duration %d: got fields %v, wantErr %v", tc.duration, fields, tc.wantErr)
			}
		})
	}
}

func TestStruct_UsesJSONNames(t *testing.T) {
	fields := Struct(models.CreateSubjectRequest{})
	if fields["name"] != "this field is required" {
		t.Fatalf("expected required message for name, got %v", fields)
	}
	if _, ok := fields["code"]; !ok {
		t.Fatalf("expected code error, got %v", fields)
	}
}

func TestStruct_Valid(t *testing.T) {
	if fields := Struct(models.CreateClassRequest{Name: "CS101"}); fields != nil {
		t.Fatalf("expected no errors, got %v", fields)
	}
}

func TestVar_OneOf(t *testing.T) {
	if err := Var("csv", "oneof=csv xlsx"); err != nil {
		t.Fatalf("csv should be accepted: %v", err)
	}
	if err := Var("pdf", "oneof=csv xlsx"); err == nil {
		t.Fatalf("pdf should be rejected")
	}
}
