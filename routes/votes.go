package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"flashvote/logging"
	"flashvote/votes"
)

// maxBatch bounds how many subjects one batch request may ask for.
const maxBatch = 500

// 用 any 接，才分得出「沒給」跟「型別不對」
type voteInput struct {
	SubjectID  any `json:"subject_id"`
	LocationID any `json:"location_id"`
	Choice     any `json:"choice"`
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// POST /votes
func (h *handler) castVote(c *gin.Context) {
	var in voteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}

	b := votes.Ballot{
		SubjectID:  asString(in.SubjectID),
		LocationID: asString(in.LocationID),
		SourceIP:   c.ClientIP(),
	}
	if choice, ok := in.Choice.(bool); ok {
		b.Choice = &choice
	}
	if uid := c.GetInt64("userId"); uid != 0 {
		b.UserID = &uid
	}

	v, err := h.writer.Cast(c.Request.Context(), b)
	if err != nil {
		var (
			verr *votes.ValidationError
			rl   *votes.RateLimitError
		)
		switch {
		case errors.As(err, &verr):
			badRequest(c, verr.Message)
		case errors.As(err, &rl):
			c.Header("Retry-After", strconv.Itoa(rl.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{"message": rl.Error()})
		case errors.Is(err, votes.ErrSubjectNotFound):
			notFound(c, err.Error())
		case errors.Is(err, votes.ErrLocationNotFound):
			badRequest(c, err.Error())
		case errors.Is(err, votes.ErrVotingClosed):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		default:
			internalError(c, err, "Failed to record vote")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": v})
}

func (h *handler) respondBatch(c *gin.Context, ids []string, locationID string) {
	if len(ids) > maxBatch {
		badRequest(c, fmt.Sprintf("At most %d subject_ids per request", maxBatch))
		return
	}
	results, err := h.agg.Batch(c.Request.Context(), ids, locationID)
	if err != nil {
		if errors.Is(err, votes.ErrNoSubjects) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, err, "Failed to fetch vote counts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// POST /votes/batch
func (h *handler) batchResults(c *gin.Context) {
	var in struct {
		SubjectIDs []string `json:"subject_ids"`
		LocationID *string  `json:"location_id"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, votes.ErrNoSubjects.Error())
		return
	}
	loc := ""
	if in.LocationID != nil {
		loc = *in.LocationID
	}
	h.respondBatch(c, in.SubjectIDs, loc)
}

// splitIDs parses a comma separated id list, dropping empty entries.
func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// GET /votes/batch?subject_ids=a,b&location_id=
func (h *handler) batchResultsQuery(c *gin.Context) {
	ids := splitIDs(c.Query("subject_ids"))
	if len(ids) == 0 {
		badRequest(c, "subject_ids parameter is required")
		return
	}
	h.respondBatch(c, ids, c.Query("location_id"))
}

// GET /votes/time-series?subject_id=&location_id=&days=
func (h *handler) timeSeries(c *gin.Context) {
	days := h.DefaultDays
	if raw := c.Query("days"); raw != "" {
		// 不是數字就用預設值
		if n, err := strconv.Atoi(raw); err == nil {
			days = n
		}
	}

	series, err := h.bucketer.Series(c.Request.Context(), c.Query("subject_id"), c.Query("location_id"), days)
	if err != nil {
		var verr *votes.ValidationError
		if errors.As(err, &verr) {
			badRequest(c, verr.Message)
			return
		}
		internalError(c, err, "Failed to fetch time series")
		return
	}
	c.JSON(http.StatusOK, series)
}

// GET /votes/changes?subject_ids=a,b  (server-sent events)
func (h *handler) voteChanges(c *gin.Context) {
	ids := splitIDs(c.Query("subject_ids"))
	if len(ids) == 0 {
		badRequest(c, "subject_ids parameter is required")
		return
	}
	if h.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Live updates are not available"})
		return
	}

	ctx := c.Request.Context()
	changes, err := h.Feed.Subscribe(ctx)
	if err != nil {
		internalError(c, err, "Could not subscribe to vote changes")
		return
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	h.Metrics.FeedListenerAdded()
	defer h.Metrics.FeedListenerRemoved()
	log := logging.Component("vote-feed").WithField(logging.FldIP, c.ClientIP())
	log.WithField("subjects", len(ids)).Debug("listener connected")
	defer log.Debug("listener disconnected")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ping := time.NewTicker(h.Heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-changes:
			if !ok {
				return
			}
			if want[id] {
				c.SSEvent("vote", id)
				c.Writer.Flush()
			}
		case <-ping.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
