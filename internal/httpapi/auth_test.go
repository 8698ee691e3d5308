package httpapi

import (
	"context"
	"testing"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewAuthManager(testSecret, time.Hour, "246813", st)
}

func TestEnsureAdminOnlyWhenEmpty(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	if err := auth.EnsureAdmin(ctx, "Admin", "first-password"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "ADMIN", Password: "first-password"}); err != nil {
		t.Fatalf("login after bootstrap: %v", err)
	}

	// Once any account exists, EnsureAdmin must never overwrite.
	if err := auth.EnsureAdmin(ctx, "admin", "second-password"); err != nil {
		t.Fatalf("second ensure admin: %v", err)
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "second-password"}); err == nil {
		t.Fatal("second password should not work")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "first-password"}); err != nil {
		t.Fatalf("original password rejected: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t)
	if err := auth.EnsureAdmin(context.Background(), "admin", "letmein-please"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "letmein-please"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("role = %q, want admin", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("actor = %+v", actor)
	}

	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatal("garbage token accepted")
	}

	// A token signed under a different secret must be rejected.
	other := NewAuthManager("ffffffffffffffffffffffffffffffff", time.Hour, "246813", nil)
	forged, err := other.sign("admin", "admin", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(forged); err == nil {
		t.Fatal("cross-secret token accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := newTestAuth(t)
	token, err := auth.sign("admin", "admin", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := newTestAuth(t)

	if !auth.ValidateManagerPIN("246813") {
		t.Fatal("correct pin rejected")
	}
	if auth.ValidateManagerPIN("000000") {
		t.Fatal("wrong pin accepted")
	}
	if auth.ValidateManagerPIN("") {
		t.Fatal("empty pin accepted")
	}
}

func TestCreateCashierValidation(t *testing.T) {
	auth := newTestAuth(t)

	cases := []struct {
		name string
		req  domain.StaffCreateRequest
	}{
		{"short username", domain.StaffCreateRequest{Username: "abc", Password: "secret99"}},
		{"spaces in username", domain.StaffCreateRequest{Username: "jane doe", Password: "secret99"}},
		{"short password", domain.StaffCreateRequest{Username: "jane", Password: "12345"}},
	}
	for _, tc := range cases {
		if _, err := auth.CreateCashier(tc.req); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}

	created, err := auth.CreateCashier(domain.StaffCreateRequest{Username: "Jane", Password: "secret99"})
	if err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if created.Username != "jane" || created.Role != "cashier" {
		t.Fatalf("cashier = %+v", created)
	}

	if _, err := auth.CreateCashier(domain.StaffCreateRequest{Username: "jane", Password: "another9"}); err == nil {
		t.Fatal("duplicate username accepted")
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "jane", Password: "secret99"}); err != nil {
		t.Fatalf("cashier login: %v", err)
	}

	cashiers := auth.ListCashiers()
	if len(cashiers) != 1 || cashiers[0].Username != "jane" {
		t.Fatalf("cashiers = %+v", cashiers)
	}
}

func TestBootstrapUpgradesPlaintextPasswords(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	if err := st.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if err := st.CreateStaff(ctx, domain.StaffAccount{
		Username: "legacy", Password: "plain-password", Role: "cashier", Active: true,
	}); err != nil {
		t.Fatalf("seed legacy staff: %v", err)
	}

	auth := NewAuthManager(testSecret, time.Hour, "246813", st)
	if _, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plain-password"}); err != nil {
		t.Fatalf("legacy login: %v", err)
	}

	accounts, err := st.ListStaff(ctx)
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(accounts) != 1 || !isPasswordHash(accounts[0].Password) {
		t.Fatalf("stored password not upgraded: %+v", accounts)
	}
}
