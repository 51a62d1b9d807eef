// Package authclient is the client for the identity/session collaborator:
// registration, login, profile and the user roster. Token issuance and
// verification stay server-side; this package only carries the opaque
// credential and inspects its claims without verifying them.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskchat/internal/domain"
	taskchat_errors "taskchat/pkg/errors"
	"taskchat/pkg/logger"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

func New(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Credentials is the session handed out on login/register.
type Credentials struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, displayName, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", registerRequest{
		DisplayName: displayName,
		Email:       email,
		Password:    password,
	}, &creds)
	return creds, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &creds)
	return creds, err
}

func (c *Client) Profile(ctx context.Context, token string) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodGet, "/api/auth/profile", token, nil, &user)
	return user, err
}

// ListUsers fetches the chat roster: every registered user except the
// caller, with current presence.
func (c *Client) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, http.MethodGet, "/api/users", token, nil, &users)
	return users, err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugf("%s %s failed: %v", method, path, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := apiError(resp)
		c.log.Debugf("%s %s rejected: %v", method, path, err)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// apiError maps an error payload {"error": "..."} plus status code onto
// the shared sentinel errors.
func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error == "" {
		payload.Error = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = taskchat_errors.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = taskchat_errors.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = taskchat_errors.ErrForbidden
	case http.StatusNotFound:
		sentinel = taskchat_errors.ErrNotFound
	case http.StatusConflict:
		sentinel = taskchat_errors.ErrAlreadyExists
	default:
		return fmt.Errorf("api error: %s", payload.Error)
	}
	return fmt.Errorf("%s: %w", payload.Error, sentinel)
}

// Claims is the client-visible subset of the access token.
type Claims struct {
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityFromToken inspects the credential's claims without verifying
// the signature — verification belongs to the server. Used to recover
// identity and expiry from a stored token.
func IdentityFromToken(token string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
