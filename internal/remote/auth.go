package remote

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/mmcdole/rolo/internal/domain"
)

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	var tok oauth2.Token
	err := c.doRequest(ctx, request{method: http.MethodPost, path: "/auth/login", body: creds}, &tok)
	if err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !sess.Complete() {
		return domain.Session{}, fmt.Errorf("%w: login response is missing a token", domain.ErrServer)
	}
	c.logger.Info("logged in", "username", creds.Username)
	return sess, nil
}

// Register creates an account. The service does not log the user in.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	var user domain.User
	err := c.doRequest(ctx, request{method: http.MethodPost, path: "/auth/register", body: reg}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh trades a refresh token for a new access token. The service may
// omit a rotated refresh token, in which case the presented one is kept.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	var tok oauth2.Token
	err := c.doRequest(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   refreshRequest{RefreshToken: refreshToken},
	}, &tok)
	if err != nil {
		return domain.Session{}, err
	}
	if tok.AccessToken == "" {
		return domain.Session{}, fmt.Errorf("%w: refresh response is missing access_token", domain.ErrServer)
	}

	sess := domain.Session{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if sess.RefreshToken == "" {
		sess.RefreshToken = refreshToken
	}
	return sess, nil
}

// Logout revokes the refresh token server-side
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return c.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/logout",
		accessToken: accessToken,
		body:        refreshRequest{RefreshToken: refreshToken},
	}, nil)
}

// CurrentUser returns the authenticated user with their contacts
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	var user domain.User
	err := c.doRequest(ctx, request{method: http.MethodGet, path: "/auth/users/me", accessToken: accessToken}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
