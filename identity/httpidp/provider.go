package httpidp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gosom/store-provisioner/identity"
)

type userRecord struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type setClaimsRequest struct {
	Claims map[string]any `json:"claims"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type verifyTokenResponse struct {
	UID string `json:"uid"`
}

var _ identity.Provider = (*Client)(nil)

func (c *Client) CreateUser(ctx context.Context, params identity.CreateUserParams) (identity.Record, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/users", createUserRequest{
		Email:       params.Email,
		Password:    params.Password,
		DisplayName: params.DisplayName,
	})
	if err != nil {
		return identity.Record{}, err
	}

	var rec userRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return identity.Record{}, fmt.Errorf("failed to decode user record: %w", err)
	}

	return identity.Record{UID: rec.UID, Email: rec.Email, DisplayName: rec.DisplayName}, nil
}

func (c *Client) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	endpoint := fmt.Sprintf("/v1/users/%s/claims", url.PathEscape(uid))

	_, err := c.doRequest(ctx, http.MethodPut, endpoint, setClaimsRequest{Claims: claims})

	return err
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (identity.Record, error) {
	endpoint := "/v1/users/by-email?email=" + url.QueryEscape(email)

	body, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return identity.Record{}, err
	}

	var rec userRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return identity.Record{}, fmt.Errorf("failed to decode user record: %w", err)
	}

	return identity.Record{UID: rec.UID, Email: rec.Email, DisplayName: rec.DisplayName}, nil
}

func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/tokens/verify", verifyTokenRequest{Token: token})
	if err != nil {
		return "", err
	}

	var resp verifyTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	return resp.UID, nil
}

func statusError(code int, body []byte) error {
	switch code {
	case http.StatusNotFound:
		return identity.ErrUserNotFound
	case http.StatusConflict:
		return identity.ErrEmailTaken
	case http.StatusUnauthorized, http.StatusForbidden:
		return identity.ErrTokenInvalid
	default:
		return fmt.Errorf("%w: status %d: %s", identity.ErrProviderError, code, string(body))
	}
}
