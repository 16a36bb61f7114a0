package votes

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"flashvote/clock"
	"flashvote/logging"
	"flashvote/metrics"
	"flashvote/models"
)

// Ballot is one vote attempt as received from a voter.
type Ballot struct {
	SubjectID  string
	LocationID string // empty = no location
	Choice     *bool  // nil = missing
	UserID     *int64 // nil = anonymous
	SourceIP   string
}

// Publisher is notified after every stored vote.
type Publisher interface {
	Publish(ctx context.Context, subjectID string) error
}

// Writer validates, rate limits and stores votes.
type Writer struct {
	votes    models.VoteRepository
	subjects models.SubjectRepository
	events   models.EventRepository
	window   *Window
	feed     Publisher
	metrics  *metrics.Metrics
	clock    clock.Clock
	log      *logrus.Entry
}

type WriterOption func(*Writer)

func WithPublisher(p Publisher) WriterOption {
	return func(w *Writer) { w.feed = p }
}

func WithMetrics(m *metrics.Metrics) WriterOption {
	return func(w *Writer) { w.metrics = m }
}

func WithClock(c clock.Clock) WriterOption {
	return func(w *Writer) { w.clock = c }
}

func NewWriter(votes models.VoteRepository, subjects models.SubjectRepository, events models.EventRepository, window *Window, opts ...WriterOption) *Writer {
	w := &Writer{
		votes:    votes,
		subjects: subjects,
		events:   events,
		window:   window,
		clock:    clock.NewSystem(),
		log:      logging.Component("vote-writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Cast stores one vote. Errors are *ValidationError, *RateLimitError,
// ErrSubjectNotFound, ErrLocationNotFound, ErrVotingClosed or a store failure.
//
// The window is checked before the insert and marked after it. Attempts on
// the same key are serialized within one Window, but two instances sharing a
// RedisStore can still both accept a vote that races between check and mark.
func (w *Writer) Cast(ctx context.Context, b Ballot) (models.Vote, error) {
	if b.SubjectID == "" {
		return models.Vote{}, &ValidationError{Message: "Subject ID is required"}
	}
	if b.Choice == nil {
		return models.Vote{}, &ValidationError{Message: "Choice must be a boolean"}
	}

	release := w.window.Hold(b.SourceIP, b.SubjectID)
	defer release()

	if err := w.window.Check(ctx, b.SourceIP, b.SubjectID); err != nil {
		var rl *RateLimitError
		if stderrors.As(err, &rl) {
			w.metrics.VoteRateLimited()
		}
		return models.Vote{}, err
	}

	subject, err := w.subjects.GetByID(ctx, b.SubjectID)
	if err != nil {
		if stderrors.Is(err, models.ErrNotFound) {
			return models.Vote{}, ErrSubjectNotFound
		}
		return models.Vote{}, errors.Wrap(err, "load subject")
	}
	event, err := w.events.GetByID(ctx, subject.EventID)
	if err != nil {
		// subject 還在但 event 已刪，視同找不到
		if stderrors.Is(err, models.ErrNotFound) {
			return models.Vote{}, ErrSubjectNotFound
		}
		return models.Vote{}, errors.Wrap(err, "load event")
	}
	if event.Archived() {
		return models.Vote{}, ErrVotingClosed
	}

	v := models.Vote{
		ID:        uuid.NewString(),
		SubjectID: b.SubjectID,
		UserID:    b.UserID,
		UserIP:    b.SourceIP,
		Choice:    *b.Choice,
		CreatedAt: w.clock.Now(),
	}
	if b.LocationID != "" {
		loc := b.LocationID
		v.LocationID = &loc
	}

	if err := w.votes.Insert(ctx, &v); err != nil {
		if stderrors.Is(err, models.ErrInvalidReference) {
			return models.Vote{}, ErrLocationNotFound
		}
		return models.Vote{}, err
	}

	// 寫入成功才開始計時
	if err := w.window.Mark(ctx, b.SourceIP, b.SubjectID); err != nil {
		w.log.WithError(err).WithField(logging.FldSubject, b.SubjectID).Warn("failed to record vote window")
	}
	w.metrics.VoteAccepted(v.Choice)

	if w.feed != nil {
		if err := w.feed.Publish(ctx, v.SubjectID); err != nil {
			w.log.WithError(err).WithField(logging.FldSubject, v.SubjectID).Warn("failed to publish vote change")
		}
	}
	return v, nil
}
