// Package docbin implements the remote store contract against a generic
// JSON document-bin service: one bin per (user, record-set), addressed
// deterministically so repeated calls hit the same bin without a discovery
// step.
package docbin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hourflow/hourflow/internal/sync/remote"
)

// binSuffixes maps the known record-set names to their fixed bin suffixes.
// Unknown names fall back to a slug derived from the name itself, so
// addressing stays deterministic either way.
var binSuffixes = map[string]string{
	"clients":     "hf-clients",
	"projects":    "hf-projects",
	"timeEntries": "hf-time-entries",
	"quotes":      "hf-quotes",
	"invoices":    "hf-invoices",
	"revenue":     "hf-revenue",
	"settings":    "hf-settings",
}

// Client talks to the document-bin service.
type Client struct {
	BaseURL    string
	MasterKey  string
	HTTPClient *http.Client
}

func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		MasterKey: masterKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BinID derives the remote document identifier for a user's record-set.
func BinID(userID, set string) string {
	suffix, ok := binSuffixes[set]
	if !ok {
		suffix = "hf-" + slug(set)
	}
	return userID + "-" + suffix
}

// slug lowercases a record-set name and splits camelCase words with dashes,
// e.g. "timeEntries" -> "time-entries".
func slug(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type binEnvelope struct {
	Value json.RawMessage `json:"value"`
}

func (c *Client) Fetch(ctx context.Context, userID, set string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/b/"+BinID(userID, set)+"/latest", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, remote.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError("fetch", resp)
	}

	var env binEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("docbin: decode response: %w", err)
	}
	return env.Value, nil
}

func (c *Client) Put(ctx context.Context, userID, set string, value json.RawMessage) error {
	id := BinID(userID, set)

	body, err := json.Marshal(binEnvelope{Value: value})
	if err != nil {
		return fmt.Errorf("docbin: encode value: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/b/"+id, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// First store for this bin: create it in place with the same id.
		created, err := c.do(ctx, http.MethodPost, "/b/"+id, body)
		if err != nil {
			return err
		}
		defer created.Body.Close()

		if created.StatusCode < 200 || created.StatusCode > 299 {
			return statusError("create", created)
		}
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("update", resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("docbin: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.MasterKey != "" {
		req.Header.Set("X-Master-Key", c.MasterKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docbin: send request: %w", err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	return fmt.Errorf("docbin: %s failed with status %d", op, resp.StatusCode)
}
