package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"enarm/portal/internal/session"
)

const maxResponseBytes = 1 << 20

// Client talks to the remote authentication API.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("auth api base url must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse auth api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("auth api base url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) Login(ctx context.Context, cr Credentials) (Result, error) {
	return c.post(ctx, "auth_user", map[string]string{
		"email":    cr.Email,
		"password": cr.Password,
	}, session.RoleAdmin)
}

func (c *Client) LoginPlayer(ctx context.Context, cr Credentials) (Result, error) {
	return c.post(ctx, "players/login", map[string]string{
		"email":    cr.Email,
		"password": cr.Password,
	}, session.RolePlayer)
}

func (c *Client) CreatePlayer(ctx context.Context, cr Credentials) (Result, error) {
	return c.post(ctx, "players", map[string]any{
		"player": map[string]string{
			"email":    cr.Email,
			"password": cr.Password,
			"name":     cr.Name,
		},
	}, session.RolePlayer)
}

func (c *Client) SocialLogin(ctx context.Context, id SocialIdentity) (Result, error) {
	switch id.Provider {
	case ProviderGoogle:
		return c.post(ctx, "players/google", map[string]string{
			"google_id": id.ProviderID,
			"email":     id.Email,
			"name":      id.Name,
			"id_token":  id.IDToken,
		}, session.RolePlayer)
	case ProviderFacebook:
		email := id.Email
		if email == "" {
			email = "no_mail"
		}
		return c.post(ctx, "players", map[string]any{
			"player": map[string]string{
				"name":        id.Name,
				"facebook_id": id.ProviderID,
				"email":       email,
			},
		}, session.RolePlayer)
	default:
		return Result{}, fmt.Errorf("unsupported social provider %q", id.Provider)
	}
}

type response struct {
	Token   string `json:"token"`
	Role    string `json:"role"`
	ID      any    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, body any, defaultRole session.Role) (Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s request: %w", path, err)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s response: %v", ErrUnavailable, path, err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			return Result{}, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
		}
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		return Result{}, Rejected(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
	}
	if out.Token == "" {
		return Result{}, fmt.Errorf("%w: %s response carried no token", ErrMalformed, path)
	}

	role := defaultRole
	if out.Role != "" {
		// An unrecognized role leaves the session without one.
		role, _ = session.ParseRole(out.Role)
	}
	return Result{
		Token: out.Token,
		Role:  role,
		ID:    formatID(out.ID),
		Name:  out.Name,
		Email: out.Email,
	}, nil
}

func formatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}
