package util

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	auth := NewAuthenticator()
	if err := auth.AddUser("admin", "admin123", bcrypt.MinCost); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		expected bool
	}{
		{"Valid credentials", "admin", "admin123", true},
		{"Wrong password", "admin", "admin124", false},
		{"Unknown user", "root", "admin123", false},
		{"Empty password", "admin", "", false},
		{"Case sensitive username", "Admin", "admin123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := auth.Authenticate(tt.username, tt.password); got != tt.expected {
				t.Errorf("Authenticate(%s, %s) = %v, expected %v", tt.username, tt.password, got, tt.expected)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("user123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "user123" {
		t.Error("HashPassword() returned the plain password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("user123")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
}

func TestLoadAuthenticatorDefaults(t *testing.T) {
	Config.Set("users", nil)
	Config.Set("bcrypt_cost", bcrypt.MinCost)

	auth, err := LoadAuthenticator()
	if err != nil {
		t.Fatalf("LoadAuthenticator() error = %v", err)
	}
	if !auth.Authenticate("admin", "admin123") {
		t.Error("built-in admin account should be accepted")
	}
	if !auth.Authenticate("user", "user123") {
		t.Error("built-in user account should be accepted")
	}
}

func TestLoadAuthenticatorConfiguredUsers(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	Config.Set("users", []map[string]interface{}{
		{"username": "facilities", "password_hash": hash},
		{"username": "incomplete"},
	})
	defer Config.Set("users", nil)

	auth, err := LoadAuthenticator()
	if err != nil {
		t.Fatalf("LoadAuthenticator() error = %v", err)
	}
	if !auth.Authenticate("facilities", "s3cret") {
		t.Error("configured user should be accepted")
	}
	if auth.Authenticate("admin", "admin123") {
		t.Error("built-in accounts should be disabled once users are configured")
	}
	if auth.Authenticate("incomplete", "") {
		t.Error("incomplete entries should be skipped")
	}
}
