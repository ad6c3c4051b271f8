package backend

import (
	"context"
	"net/http"
	"strings"
)

// Credentials is the session returned by sign-in.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TrainerID    int64  `json:"trainerId"`
	UserName     string `json:"userName"`
	Role         string `json:"role"`
	ExpiresAt    int64  `json:"expiresAt"`
}

type ClientRecord struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c ClientRecord) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// SignIn exchanges email and password for tokens. The client keeps using the
// returned access token for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	payload := map[string]string{"email": strings.TrimSpace(email), "password": password}
	var creds Credentials
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", payload, &creds); err != nil {
		return Credentials{}, err
	}
	c.token = creds.AccessToken
	return creds, nil
}

func (c *Client) ListClients(ctx context.Context) ([]ClientRecord, error) {
	var body struct {
		Clients []ClientRecord `json:"clients"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/existing_clients", nil, &body); err != nil {
		return nil, err
	}
	return body.Clients, nil
}

func (c *Client) AddClient(ctx context.Context, client ClientRecord) (ClientRecord, error) {
	var created ClientRecord
	if err := c.do(ctx, http.MethodPost, "/api/add_client", client, &created); err != nil {
		return ClientRecord{}, err
	}
	return created, nil
}
