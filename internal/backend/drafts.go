package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
)

// RemoteStorage keeps draft keys on the server so a trainer can continue a
// draft from another machine.
type RemoteStorage struct {
	client *Client
}

func NewRemoteStorage(client *Client) *RemoteStorage {
	return &RemoteStorage{client: client}
}

var _ intake.Storage = (*RemoteStorage)(nil)

func draftPath(key string) string {
	return "/api/drafts/" + url.PathEscape(key)
}

func (s *RemoteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var body struct {
		Value string `json:"value"`
	}
	err := s.client.do(ctx, http.MethodGet, draftPath(key), nil, &body)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return body.Value, true, nil
}

func (s *RemoteStorage) Set(ctx context.Context, key, value string) error {
	return s.client.do(ctx, http.MethodPut, draftPath(key), map[string]string{"value": value}, nil)
}

func (s *RemoteStorage) Remove(ctx context.Context, key string) error {
	return s.client.do(ctx, http.MethodDelete, draftPath(key), nil, nil)
}
