// Package client talks to the FlashVote HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"flashvote/models"
	"flashvote/votes"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status     int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flashvote: %d %s", e.Status, e.Message)
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sends the JWT on every request so votes are attributed to the user.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	e := &APIError{Status: resp.StatusCode, Message: body.Message}
	if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		e.RetryAfter = ra
	}
	return e
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// CastVote submits one vote. A rejected vote returns *APIError; on 429 its
// RetryAfter says how long to wait.
func (c *Client) CastVote(ctx context.Context, subjectID, locationID string, choice bool) (models.Vote, error) {
	in := struct {
		SubjectID  string  `json:"subject_id"`
		LocationID *string `json:"location_id,omitempty"`
		Choice     bool    `json:"choice"`
	}{SubjectID: subjectID, Choice: choice}
	if locationID != "" {
		in.LocationID = &locationID
	}

	var out struct {
		Data models.Vote `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/votes", in, &out); err != nil {
		return models.Vote{}, err
	}
	return out.Data, nil
}

// Batch fetches the aggregate of every subject in subjectIDs.
func (c *Client) Batch(ctx context.Context, subjectIDs []string, locationID string) (map[string]votes.Counts, error) {
	in := struct {
		SubjectIDs []string `json:"subject_ids"`
		LocationID string   `json:"location_id,omitempty"`
	}{SubjectIDs: subjectIDs, LocationID: locationID}

	var out struct {
		Results map[string]votes.Counts `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/votes/batch", in, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// TimeSeries fetches the raw and running-average series of one subject.
// days <= 0 uses the server default.
func (c *Client) TimeSeries(ctx context.Context, subjectID, locationID string, days int) (votes.Series, error) {
	q := url.Values{"subject_id": {subjectID}}
	if locationID != "" {
		q.Set("location_id", locationID)
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}

	var out votes.Series
	err := c.do(ctx, http.MethodGet, "/votes/time-series?"+q.Encode(), nil, &out)
	return out, err
}

// Changes streams subject ids that received a vote. The channel closes when
// ctx is done or the server ends the stream.
func (c *Client) Changes(ctx context.Context, subjectIDs []string) (<-chan string, error) {
	q := url.Values{"subject_ids": {strings.Join(subjectIDs, ",")}}
	req, err := c.newRequest(ctx, http.MethodGet, "/votes/changes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// 串流不能套用整體 timeout
	h := *c.http
	h.Timeout = 0
	resp, err := h.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "open change stream")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, resp.Body, out)
	}()
	return out, nil
}

// readEvents parses a text/event-stream body and forwards the data of every
// "vote" event.
func readEvents(ctx context.Context, r io.Reader, out chan<- string) {
	sc := bufio.NewScanner(r)
	event, data := "", ""
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data != "" && (event == "" || event == "vote") {
				select {
				case out <- data:
				case <-ctx.Done():
					return
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, ":"):
			// 註解 / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}
