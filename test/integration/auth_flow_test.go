package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/swiftfix/backoffice/internal/domain"
)

func TestLoginProfileLogoutFlow(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "tech@example.com", domain.RoleEmployee)

	token, _ := e.login(t, "tech@example.com", "10.1.0.1")

	resp, out := e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, token, "10.1.0.1")
	if resp.StatusCode != http.StatusOK || !out.Success {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var profile struct {
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	if err := json.Unmarshal(out.Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "tech@example.com" || profile.Role != domain.RoleEmployee {
		t.Fatalf("profile = %+v", profile)
	}

	resp, _ = e.doJSON(t, http.MethodPost, "/api/v1/auth/logout", nil, token, "10.1.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	// The cookie no longer authorizes anything.
	resp, out = e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, token, "10.1.0.1")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", resp.StatusCode)
	}
	if out.Error == nil || out.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("error = %+v, want UNAUTHORIZED", out.Error)
	}
}

func TestSessionCapAcrossLogins(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "multi@example.com", domain.RoleEmployee)

	// Six sign-ins from six devices; the strict login budget is per
	// client, so each device gets its own identity.
	tokens := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		token, _ := e.login(t, "multi@example.com", fmt.Sprintf("10.2.0.%d", i+1))
		tokens = append(tokens, token)
	}

	resp, out := e.doJSON(t, http.MethodGet, "/api/v1/auth/sessions", nil, tokens[5], "10.2.0.6")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions status = %d", resp.StatusCode)
	}
	var sessions []struct {
		ID        uint `json:"id"`
		IsCurrent bool `json:"is_current"`
	}
	if err := json.Unmarshal(out.Data, &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != domain.MaxSessionsPerUser {
		t.Fatalf("have %d sessions, want the cap of %d", len(sessions), domain.MaxSessionsPerUser)
	}
	if !sessions[0].IsCurrent {
		t.Fatal("newest session should be the current one")
	}

	// The first device was evicted silently.
	resp, _ = e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, tokens[0], "10.2.0.1")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("evicted session status = %d, want 401", resp.StatusCode)
	}
	// The second device still works.
	resp, _ = e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, tokens[1], "10.2.0.2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("surviving session status = %d, want 200", resp.StatusCode)
	}

	// Revoke one other device from the current one.
	target := sessions[2].ID
	resp, _ = e.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/v1/auth/sessions/%d", target), nil, tokens[5], "10.2.0.6")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d", resp.StatusCode)
	}
	resp, out = e.doJSON(t, http.MethodGet, "/api/v1/auth/sessions", nil, tokens[5], "10.2.0.6")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(out.Data, &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != domain.MaxSessionsPerUser-1 {
		t.Fatalf("have %d sessions after revoke, want %d", len(sessions), domain.MaxSessionsPerUser-1)
	}
}

func TestAdminPasswordResetKillsOtherBrowser(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "admin@example.com", domain.RoleAdmin)
	target := e.seedUser(t, "victim@example.com", domain.RoleEmployee)

	victimToken, _ := e.login(t, "victim@example.com", "10.3.0.1")
	adminToken, _ := e.login(t, "admin@example.com", "10.3.0.2")

	resp, _ := e.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/reset-password", target.ID), map[string]string{
		"new_password": "a brand new password",
	}, adminToken, "10.3.0.2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}

	// The victim's open browser session stops authorizing immediately.
	resp, _ = e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, victimToken, "10.3.0.1")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("victim session status = %d, want 401", resp.StatusCode)
	}

	// The old password is gone; the new one signs in.
	resp, _ = e.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "victim@example.com",
		"password": testPassword,
	}, "", "10.3.0.3")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password status = %d, want 401", resp.StatusCode)
	}
	resp, _ = e.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "victim@example.com",
		"password": "a brand new password",
	}, "", "10.3.0.3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password status = %d, want 200", resp.StatusCode)
	}
}

func TestRefreshTokenFlow(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "apiclient@example.com", domain.RoleEmployee)

	_, refreshToken := e.login(t, "apiclient@example.com", "10.4.0.1")

	resp, out := e.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, "", "10.4.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var data struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		t.Fatalf("decode refresh data: %v", err)
	}
	if data.SessionToken == "" {
		t.Fatal("refresh returned no session token")
	}

	resp, _ = e.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, data.SessionToken, "10.4.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with refreshed token status = %d", resp.StatusCode)
	}

	resp, _ = e.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": "never-issued",
	}, "", "10.4.0.2")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestUserProvisioningFlow(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "admin@example.com", domain.RoleAdmin)

	adminToken, _ := e.login(t, "admin@example.com", "10.5.0.1")

	resp, out := e.doJSON(t, http.MethodPost, "/api/v1/users/", map[string]string{
		"email":    "Hire@Example.com",
		"name":     "New Hire",
		"password": "a long enough password",
		"role":     "MANAGER",
	}, adminToken, "10.5.0.1")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created struct {
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	if err := json.Unmarshal(out.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Email != "hire@example.com" || created.Role != domain.RoleManager {
		t.Fatalf("created = %+v", created)
	}

	// Duplicate email is a conflict regardless of case.
	resp, out = e.doJSON(t, http.MethodPost, "/api/v1/users/", map[string]string{
		"email":    "hire@example.com",
		"name":     "Duplicate",
		"password": "a long enough password",
	}, adminToken, "10.5.0.1")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
	if out.Error == nil || out.Error.Code != "CONFLICT" {
		t.Fatalf("error = %+v, want CONFLICT", out.Error)
	}
}
