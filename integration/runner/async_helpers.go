package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/pkg/achievement"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

const (
	// PollInterval is how often to check the event stream for expected events
	PollInterval = 50 * time.Millisecond
	// EventTimeout is max time to wait for an analytics event to arrive
	EventTimeout = 10 * time.Second
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// doJSON sends body (if any) and decodes a 2xx response into out.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StartSession starts a session on a catalogue game.
func StartSession(ctx context.Context, client *http.Client, baseURL, game string) (*handlers.SessionResponse, error) {
	var resp handlers.SessionResponse
	err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/sessions", handlers.StartSessionRequest{Game: game}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteScene reports results for the session's active scene.
func CompleteScene(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, results state.SceneResults) (*handlers.CompleteResponse, error) {
	var resp handlers.CompleteResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/complete", baseURL, sessionID)
	if err := doJSON(ctx, client, http.MethodPost, url, results, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession retrieves the current session state
func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*state.SessionState, error) {
	var resp handlers.SessionResponse
	if err := doJSON(ctx, client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// GetAchievements evaluates the session's achievements as they stand.
func GetAchievements(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) ([]achievement.Record, error) {
	var resp handlers.AchievementsResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/achievements", baseURL, sessionID)
	if err := doJSON(ctx, client, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Achievements, nil
}

// EventStream records the event types sent on a session's SSE stream.
type EventStream struct {
	mu     sync.Mutex
	types  []string
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenEventStream connects to the session's stream and returns once the
// server has confirmed the subscription.
func OpenEventStream(ctx context.Context, baseURL string, sessionID uuid.UUID) (*EventStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/events/sessions/%s", baseURL, sessionID), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// The shared client's timeout would cut the stream off.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		cancel()
		return nil, &APIError{Status: resp.StatusCode, Body: string(b)}
	}

	s := &EventStream{cancel: cancel, done: make(chan struct{})}
	reader := bufio.NewReader(resp.Body)
	name, err := readEventName(reader)
	if err != nil || name != "connected" {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("event stream did not confirm the subscription (got %q): %v", name, err)
	}

	go func() {
		defer close(s.done)
		defer func() { _ = resp.Body.Close() }()
		for {
			name, err := readEventName(reader)
			s.mu.Lock()
			if err != nil {
				if ctx.Err() == nil {
					s.err = err
				}
				s.mu.Unlock()
				return
			}
			s.types = append(s.types, name)
			s.mu.Unlock()
		}
	}()
	return s, nil
}

// readEventName returns the name of the next complete SSE event, skipping
// keepalive comments.
func readEventName(r *bufio.Reader) (string, error) {
	name := ""
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case line == "" && name != "":
			return name, nil
		}
	}
}

// Mark returns a position to pass to WaitFor.
func (s *EventStream) Mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.types)
}

// WaitFor blocks until every wanted type has arrived after the mark.
func (s *EventStream) WaitFor(ctx context.Context, since int, wanted []string) error {
	timeout := time.After(EventTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		missing := s.missing(since, wanted)
		if len(missing) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for events %v (waited %v)", missing, EventTimeout)
		case <-ticker.C:
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err != nil {
				return fmt.Errorf("event stream closed while waiting for %v: %w", missing, err)
			}
		}
	}
}

func (s *EventStream) missing(since int, wanted []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, t := range s.types[since:] {
		seen[t] = true
	}
	var missing []string
	for _, w := range wanted {
		if !seen[w] {
			missing = append(missing, w)
		}
	}
	return missing
}

// Close disconnects and waits for the reader to stop.
func (s *EventStream) Close() {
	s.cancel()
	<-s.done
}
