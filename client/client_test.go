package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flashvote/client"
	"flashvote/votes"
)

func TestCastVote_SendsBodyAndToken(t *testing.T) {
	var got map[string]any
	var authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/votes" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		authz = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"v1","subject_id":"s1","choice":true,"user_ip":"127.0.0.1"}}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL+"/", client.WithToken("tok"))
	v, err := c.CastVote(context.Background(), "s1", "", true)
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if v.ID != "v1" || !v.Choice {
		t.Fatalf("vote = %+v", v)
	}
	if authz != "Bearer tok" {
		t.Fatalf("authorization = %q", authz)
	}
	if got["subject_id"] != "s1" || got["choice"] != true {
		t.Fatalf("body = %v", got)
	}
	if _, ok := got["location_id"]; ok {
		t.Fatalf("empty location should be omitted: %v", got)
	}
}

func TestCastVote_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"Rate limit exceeded. Please wait 42 seconds before voting again."}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).CastVote(context.Background(), "s1", "loc", false)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Status != 429 || apiErr.RetryAfter != 42 {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			SubjectIDs []string `json:"subject_ids"`
			LocationID string   `json:"location_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if len(in.SubjectIDs) != 2 || in.LocationID != "loc" {
			t.Errorf("request = %+v", in)
		}
		fmt.Fprint(w, `{"results":{"a":{"positive":3,"negative":1},"b":{"positive":0,"negative":0}}}`)
	}))
	defer srv.Close()

	res, err := client.New(srv.URL).Batch(context.Background(), []string{"a", "b"}, "loc")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if res["a"] != (votes.Counts{Positive: 3, Negative: 1}) || len(res) != 2 {
		t.Fatalf("results = %v", res)
	}
}

func TestTimeSeries_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("subject_id") != "s1" || q.Get("days") != "7" || q.Get("location_id") != "" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `{"timeSeriesData":[{"timestamp":"2025-03-01T12:00:00Z","value":1}],"runningAverage":[{"timestamp":"2025-03-01T12:00:00Z","value":1}]}`)
	}))
	defer srv.Close()

	s, err := client.New(srv.URL).TimeSeries(context.Background(), "s1", "", 7)
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	if len(s.TimeSeriesData) != 1 || s.RunningAverage[0].Value != 1 {
		t.Fatalf("series = %+v", s)
	}
}

func TestChanges_ParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subject_ids") != "s1,s2" {
			t.Errorf("subject_ids = %q", r.URL.Query().Get("subject_ids"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "event: vote\ndata: s1\n\n")
		fmt.Fprint(w, "event: other\ndata: ignored\n\n")
		fmt.Fprint(w, "event:vote\ndata:s2\n\n")
	}))
	defer srv.Close()

	ch, err := client.New(srv.URL).Changes(context.Background(), []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	var got []string
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case id, ok := <-ch:
			if !ok {
				done = true
				break
			}
			got = append(got, id)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("got %v", got)
	}
}

func TestChanges_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"subject_ids parameter is required"}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Changes(context.Background(), nil)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "subject_ids parameter is required" {
		t.Fatalf("got %v", err)
	}
}
