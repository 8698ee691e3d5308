package main

import (
	"strings"
	"testing"

	"dukapos/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	strongSecret := strings.Repeat("s", 32)

	cases := []struct {
		name   string
		secret string
		pin    string
		ok     bool
	}{
		{"valid", strongSecret, "246813", true},
		{"missing secret", "", "246813", false},
		{"short secret", "too-short", "246813", false},
		{"missing pin", strongSecret, "", false},
		{"short pin", strongSecret, "12345", false},
		{"known weak pin", strongSecret, "123456", false},
		{"all same digit", strongSecret, "777777", false},
		{"ascending", strongSecret, "345678", false},
		{"descending", strongSecret, "876543", false},
		{"long valid pin", strongSecret, "29481736", true},
	}

	for _, tc := range cases {
		err := validateSecurityConfig(config.Config{AuthSecret: tc.secret, ManagerPIN: tc.pin})
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestValidatePINStrength(t *testing.T) {
	if err := validatePINStrength("246813"); err != nil {
		t.Fatalf("strong pin rejected: %v", err)
	}
	if err := validatePINStrength("112233"); err == nil {
		t.Fatal("known weak pin accepted")
	}
	if err := validatePINStrength("456789"); err == nil {
		t.Fatal("sequential pin accepted")
	}
}
