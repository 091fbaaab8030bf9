// Package remote implements the sync.Backend contract against the
// FocusKeeper document-store server over HTTP, including the live
// document watch stream.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	stdsync "sync"

	"github.com/atinyakov/FocusKeeper/internal/client/sync"
	"go.uber.org/zap"
)

// Client talks to the document-store server. It carries the bearer token
// issued at login and implements sync.Backend for the session.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu    stdsync.Mutex
	token string
}

// New returns a Client for the server at baseURL.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

// Register creates a new account on the server.
func (c *Client) Register(ctx context.Context, login, password string) error {
	body, _ := json.Marshal(credentialsRequest{Login: login, Password: password})
	resp, err := c.do(ctx, http.MethodPost, "/api/register", body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register: server returned %s", resp.Status)
	}
	return nil
}

// Login authenticates and stores the issued bearer token for subsequent
// document operations. The returned identity addresses the user's remote
// document.
func (c *Client) Login(ctx context.Context, login, password string) (sync.Identity, error) {
	body, _ := json.Marshal(credentialsRequest{Login: login, Password: password})
	resp, err := c.do(ctx, http.MethodPost, "/api/login", body, false)
	if err != nil {
		return sync.Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sync.Identity{}, fmt.Errorf("login: server returned %s", resp.Status)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return sync.Identity{}, fmt.Errorf("login: decode response: %w", err)
	}
	c.mu.Lock()
	c.token = lr.Token
	c.mu.Unlock()
	return sync.Identity{UID: lr.User, Login: lr.User}, nil
}

// Logout invalidates the session token on the server and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/logout", nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout: server returned %s", resp.Status)
	}
	return nil
}

// DocumentGet fetches the user's document; a 404 means it was never
// created.
func (c *Client) DocumentGet(ctx context.Context, uid string) (sync.Snapshot, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/document", nil, true)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("document get: server returned %s", resp.Status)
	}
	var snap sync.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, false, fmt.Errorf("document get: decode response: %w", err)
	}
	return snap, true, nil
}

// DocumentSetMerge updates only the given fields.
func (c *Client) DocumentSetMerge(ctx context.Context, uid string, fields sync.Snapshot) error {
	return c.writeDocument(ctx, http.MethodPatch, fields)
}

// DocumentSetReplace overwrites the whole document.
func (c *Client) DocumentSetReplace(ctx context.Context, uid string, fields sync.Snapshot) error {
	return c.writeDocument(ctx, http.MethodPut, fields)
}

func (c *Client) writeDocument(ctx context.Context, method string, fields sync.Snapshot) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("document write: encode fields: %w", err)
	}
	resp, err := c.do(ctx, method, "/api/document", body, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("document write: server returned %s", resp.Status)
	}
	return nil
}

// watchEvent is one server-sent snapshot on the watch stream.
type watchEvent struct {
	Exists bool          `json:"exists"`
	Fields sync.Snapshot `json:"fields"`
}

type watchSubscription struct {
	cancel context.CancelFunc
}

func (w *watchSubscription) Cancel() {
	w.cancel()
}

// DocumentSubscribe opens the server's SSE watch stream and delivers each
// snapshot event to onSnapshot from a dedicated goroutine. The first event
// arrives on attach with the current document state.
func (c *Client) DocumentSubscribe(uid string, onSnapshot func(sync.Snapshot, bool), onError func(error)) (sync.Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	resp, err := c.do(ctx, http.MethodGet, "/api/document/watch", nil, true)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("document watch: server returned %s", resp.Status)
	}

	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev watchEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				c.log.Error("decode watch event", zap.Error(err))
				continue
			}
			onSnapshot(ev.Fields, ev.Exists)
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			onError(fmt.Errorf("document watch stream: %w", err))
		}
	}()

	return &watchSubscription{cancel: cancel}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, authed bool) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		c.mu.Lock()
		token := c.token
		c.mu.Unlock()
		if token == "" {
			return nil, fmt.Errorf("%s %s: not authenticated", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
