// Package userdb implements the remote store contract against the per-user
// document database. Documents are addressed directly by path
// (users/{userID}/data/{set}); no identifier-derivation table is needed.
// The wire protocol is JSON-RPC over a websocket with id-correlated
// request/response frames.
package userdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/pkg/idx"
)

const (
	// DefaultTimeout bounds a single RPC round-trip.
	DefaultTimeout = 30 * time.Second

	// notFoundCode is the RPC error code the server reports for a document
	// that has not been created yet.
	notFoundCode = 404
)

var (
	ErrTimeout           = errors.New("userdb: rpc timeout")
	ErrIDInUse           = errors.New("userdb: request id already in use")
	ErrConnectionClosed  = errors.New("userdb: connection closed")
	ErrInvalidResponseID = errors.New("userdb: invalid response id")
)

type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("userdb: rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

// document is the stored payload shape.
type document struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Client is a websocket RPC client for the user document database.
type Client struct {
	Timeout time.Duration

	conn      *websocket.Conn
	writeLock sync.Mutex

	responses     map[string]chan rpcResponse
	responsesLock sync.RWMutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Connect dials the database endpoint and starts the read loop.
func Connect(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("userdb: dial %s: %w", url, err)
	}

	c := &Client{
		Timeout:   DefaultTimeout,
		conn:      conn,
		responses: make(map[string]chan rpcResponse),
		closed:    make(chan struct{}),
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = c.conn.Close()
	})
	return err
}

// DocPath returns the document path for a user's record-set.
func DocPath(userID, set string) string {
	return "users/" + userID + "/data/" + set
}

func (c *Client) Fetch(ctx context.Context, userID, set string) (json.RawMessage, error) {
	result, err := c.send(ctx, "get", []any{DocPath(userID, set)})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, remote.ErrNotFound
	}

	var doc document
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("userdb: decode document: %w", err)
	}
	return doc.Value, nil
}

func (c *Client) Put(ctx context.Context, userID, set string, value json.RawMessage) error {
	doc := document{Value: value, UpdatedAt: time.Now().UTC()}
	_, err := c.send(ctx, "put", []any{DocPath(userID, set), doc})
	return err
}

func (c *Client) send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	id := idx.New().String()

	ch, err := c.addResponseChannel(id)
	if err != nil {
		return nil, err
	}
	defer c.removeResponseChannel(id)

	if err := c.write(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	timeout := time.After(c.Timeout)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrConnectionClosed
	case <-timeout:
		return nil, ErrTimeout
	case res, open := <-ch:
		if !open {
			return nil, ErrConnectionClosed
		}
		if res.ID != id {
			return nil, ErrInvalidResponseID
		}
		if res.Error != nil {
			if res.Error.Code == notFoundCode {
				return nil, remote.ErrNotFound
			}
			return nil, res.Error
		}
		return res.Result, nil
	}
}

func (c *Client) write(v any) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		var res rpcResponse
		if err := c.conn.ReadJSON(&res); err != nil {
			select {
			case <-c.closed:
			default:
				_ = c.Close()
			}
			return
		}

		if ch, ok := c.getResponseChannel(res.ID); ok {
			ch <- res
		}
	}
}

func (c *Client) addResponseChannel(id string) (chan rpcResponse, error) {
	c.responsesLock.Lock()
	defer c.responsesLock.Unlock()

	if _, ok := c.responses[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrIDInUse, id)
	}

	ch := make(chan rpcResponse, 1)
	c.responses[id] = ch
	return ch, nil
}

func (c *Client) removeResponseChannel(id string) {
	c.responsesLock.Lock()
	defer c.responsesLock.Unlock()
	delete(c.responses, id)
}

func (c *Client) getResponseChannel(id string) (chan rpcResponse, bool) {
	c.responsesLock.RLock()
	defer c.responsesLock.RUnlock()
	ch, ok := c.responses[id]
	return ch, ok
}
