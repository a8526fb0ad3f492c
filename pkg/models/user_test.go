package models

import (
	"encoding/json"
	"testing"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"", RoleUser},
		{"   ", RoleUser},
		{"admin", RoleAdmin},
		{"staff", RoleStaff},
		{"user", RoleUser},
	}
	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultName(t *testing.T) {
	tests := map[string]string{
		"a@b.org":          "a",
		"jane.doe@uni.edu": "jane.doe",
		"no-at-sign":       "no-at-sign",
	}
	for email, want := range tests {
		if got := DefaultName(email); got != want {
			t.Errorf("DefaultName(%q) = %q, want %q", email, got, want)
		}
	}
}

func TestSignupRequestJSON(t *testing.T) {
	input := `{"email":"bob@campus.edu","password":"Password123","name":"Bob","surname":"Smith","department_id":4}`
	var req SignupRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("failed to unmarshal SignupRequest: %v", err)
	}
	if req.Email != "bob@campus.edu" {
		t.Errorf("Email: expected %q, got %q", "bob@campus.edu", req.Email)
	}
	if req.DepartmentID == nil || *req.DepartmentID != 4 {
		t.Errorf("DepartmentID: expected 4, got %v", req.DepartmentID)
	}
	if req.PhoneNumber != nil {
		t.Errorf("PhoneNumber: expected nil, got %q", *req.PhoneNumber)
	}
}

func TestLoginRequestJSON(t *testing.T) {
	input := `{"email":"new@campus.edu","password":"x"}`
	var req LoginRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("failed to unmarshal LoginRequest: %v", err)
	}
	if req.Provider != "" {
		t.Errorf("Provider: expected empty, got %q", req.Provider)
	}
}
