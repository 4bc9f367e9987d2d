package api

import (
	"context"
	"encoding/json"

	"qroll/internal/models"
)

// AuthResult is what every auth operation returns; failures are reported in
// Error rather than as a Go error.
type AuthResult struct {
	Success bool
	Token   string
	User    *models.User
	Error   string
}

func failed(err error, fallback string) AuthResult {
	return AuthResult{Success: false, Error: MessageOf(err, fallback)}
}

// incomplete reports a 2xx body that lacks what the operation needs. The
// server's own message wins when it sent one.
func incomplete(message, fallback string) AuthResult {
	if message != "" {
		return AuthResult{Error: message}
	}
	return AuthResult{Error: fallback + ": incomplete response from server"}
}

// GoogleLogin exchanges a Google ID token credential for a Qroll session.
// Storage is written only when the response carries both token and user.
func (c *Client) GoogleLogin(ctx context.Context, credential string) AuthResult {
	var resp models.AuthResponse
	if err := c.Post(ctx, "/auth/google-login", models.GoogleLoginRequest{Credential: credential}, &resp); err != nil {
		return failed(err, "Login failed")
	}
	if resp.Token == "" || resp.User == nil {
		return incomplete(resp.Message, "Login failed")
	}
	resp.User.Role = models.ParseRole(string(resp.User.Role))
	if err := c.store.SetSession(resp.Token, resp.User); err != nil {
		return AuthResult{Error: "Login failed: " + err.Error()}
	}
	return AuthResult{Success: true, Token: resp.Token, User: resp.User}
}

// Profile fetches the current user and refreshes the cached copy.
func (c *Client) Profile(ctx context.Context) AuthResult {
	var raw json.RawMessage
	if err := c.Get(ctx, "/auth/me", &raw); err != nil {
		return failed(err, "Failed to fetch profile")
	}
	user := decodeUser(raw)
	if user == nil {
		var resp models.AuthResponse
		json.Unmarshal(raw, &resp)
		return incomplete(resp.Message, "Failed to fetch profile")
	}
	if err := c.store.SetUser(user); err != nil {
		return AuthResult{Error: "Failed to fetch profile: " + err.Error()}
	}
	tok, _ := c.store.Token()
	return AuthResult{Success: true, Token: tok, User: user}
}

// SetRole assigns the user's role. A response carrying a new token replaces
// the stored one together with the user.
func (c *Client) SetRole(ctx context.Context, role models.Role) AuthResult {
	var resp models.AuthResponse
	if err := c.Put(ctx, "/auth/set-role", models.SetRoleRequest{Role: role}, &resp); err != nil {
		return failed(err, "Failed to set role")
	}
	if resp.User == nil {
		return incomplete(resp.Message, "Failed to set role")
	}
	resp.User.Role = models.ParseRole(string(resp.User.Role))

	var err error
	if resp.Token != "" {
		err = c.store.SetSession(resp.Token, resp.User)
	} else {
		err = c.store.SetUser(resp.User)
	}
	if err != nil {
		return AuthResult{Error: "Failed to set role: " + err.Error()}
	}
	tok, _ := c.store.Token()
	return AuthResult{Success: true, Token: tok, User: resp.User}
}

// Logout notifies the backend and clears the local session either way.
func (c *Client) Logout(ctx context.Context) AuthResult {
	err := c.Post(ctx, "/auth/logout", nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	if err != nil {
		return failed(err, "Logout failed")
	}
	return AuthResult{Success: true}
}

// decodeUser accepts either {"user": {...}} or a bare user object.
func decodeUser(raw json.RawMessage) *models.User {
	var wrapped models.AuthResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		wrapped.User.Role = models.ParseRole(string(wrapped.User.Role))
		return wrapped.User
	}
	var bare models.User
	if err := json.Unmarshal(raw, &bare); err == nil && bare.ID != "" {
		bare.Role = models.ParseRole(string(bare.Role))
		return &bare
	}
	return nil
}
