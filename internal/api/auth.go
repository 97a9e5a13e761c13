package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
)

// Login exchanges credentials for a session token and stores it.
// The login endpoint takes no bearer token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	data, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.URL(constants.PathLogin), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusUnauthorized {
		return fmt.Errorf("%w: status %d: %s", ErrInvalidCredentials, resp.StatusCode, ReadErrorBody(resp))
	}
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("login failed: status %d: %s", resp.StatusCode, ReadErrorBody(resp))
	}

	var result models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("login response contained no token")
	}

	if err := c.session.SetToken(result.Token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	c.logger.Info().Str("user", username).Msg("logged in")
	c.eventBus.Publish(events.NewViewChangedEvent(events.ViewApp, ReasonLogin))
	return nil
}

// Logout clears the session and returns to the login view.
func (c *Client) Logout() error {
	if err := c.session.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	c.loggedOut(ReasonLogout)
	return nil
}
