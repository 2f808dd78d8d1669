// Package license verifies license keys against the licensing backend and
// keeps an offline fallback: an Argon2id hash of the last key the backend
// accepted. When the backend is unreachable, a key matching the cached hash
// stays valid.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/pkg/cryptox"
)

// cacheKey is device-level, never user-scoped: the license belongs to the
// installation.
const cacheKey = store.Key("licenseKeyHash")

var ErrInvalidKey = errors.New("license: key rejected")

// Result reports the outcome of a verification, including whether it was
// decided offline from the cached hash.
type Result struct {
	Valid   bool   `json:"valid"`
	Offline bool   `json:"offline"`
	Message string `json:"message,omitempty"`
}

// Client talks to the licensing backend.
type Client struct {
	BaseURL    string
	Store      store.Store
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// NewClient creates a license client against baseURL, caching accepted keys
// in s.
func NewClient(baseURL string, s store.Store, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		Store:   s,
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type verifyRequest struct {
	Key string `json:"key"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Verify checks key against the backend. On acceptance the key's hash is
// cached for offline verification; on rejection the cache is cleared. When
// the backend cannot be reached the cached hash decides.
func (c *Client) Verify(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrInvalidKey
	}

	resp, err := c.verifyOnline(ctx, key)
	if err != nil {
		c.Logger.Warn("license backend unreachable, falling back to cached hash", "error", err)
		return c.verifyOffline(ctx, key)
	}

	if !resp.Valid {
		if err := c.Store.Delete(ctx, cacheKey); err != nil {
			c.Logger.Warn("failed to clear cached license hash", "error", err)
		}
		return Result{Valid: false, Message: resp.Message}, nil
	}

	hash, err := cryptox.HashKey(key)
	if err != nil {
		return Result{}, fmt.Errorf("hash license key: %w", err)
	}
	raw, _ := json.Marshal(hash)
	if err := c.Store.Put(ctx, cacheKey, raw); err != nil {
		c.Logger.Warn("failed to cache license hash", "error", err)
	}

	return Result{Valid: true, Message: resp.Message}, nil
}

func (c *Client) verifyOnline(ctx context.Context, key string) (verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{Key: key})
	if err != nil {
		return verifyResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/licenses/verify", bytes.NewReader(body))
	if err != nil {
		return verifyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return verifyResponse{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return verifyResponse{}, fmt.Errorf("license backend returned %d", httpResp.StatusCode)
	}

	var resp verifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return verifyResponse{}, fmt.Errorf("decode verify response: %w", err)
	}
	return resp, nil
}

func (c *Client) verifyOffline(ctx context.Context, key string) (Result, error) {
	raw, err := c.Store.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Valid: false, Offline: true, Message: "no cached license"}, nil
		}
		return Result{}, fmt.Errorf("read cached license hash: %w", err)
	}

	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return Result{Valid: false, Offline: true, Message: "cached license unreadable"}, nil
	}

	if err := cryptox.VerifyKey(key, hash); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return Result{Valid: false, Offline: true, Message: "key does not match cached license"}, nil
		}
		return Result{}, err
	}
	return Result{Valid: true, Offline: true}, nil
}
