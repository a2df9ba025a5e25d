// Package credentials reads and writes provider secrets kept in the
// integration_tokens table.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"videochain/internal/infra"
	"videochain/internal/sqlinline"
)

// ProviderVideoAPI names the video generation gateway token.
const ProviderVideoAPI = "video-api"

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// VideoAPIKey returns the stored gateway key, or "" when none is stored.
func (s *Store) VideoAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderVideoAPI)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetVideoAPIKey stores key together with the base URL it belongs to.
func (s *Store) SetVideoAPIKey(ctx context.Context, key, baseURL string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("video api key is required")
	}
	var props map[string]any
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		props = map[string]any{"base_url": baseURL}
	}
	return s.upsert(ctx, ProviderVideoAPI, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
