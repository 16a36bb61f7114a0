package votes

import (
	"context"
	"time"

	"flashvote/clock"
	"flashvote/models"
)

const (
	DefaultDays = 30
	// MaxDays caps the lookback; larger values read everything anyway.
	MaxDays = 36500
	// RunningWindow is how many trailing points the running average covers.
	RunningWindow = 5
)

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type Series struct {
	TimeSeriesData []Point `json:"timeSeriesData"`
	RunningAverage []Point `json:"runningAverage"`
}

// BuildSeries maps votes (oldest first) to 1/0 points and their trailing
// average over the last RunningWindow points. Both slices are non-nil.
func BuildSeries(votes []models.Vote) Series {
	s := Series{
		TimeSeriesData: make([]Point, 0, len(votes)),
		RunningAverage: make([]Point, 0, len(votes)),
	}

	sum := 0.0
	for i, v := range votes {
		p := Point{Timestamp: v.CreatedAt}
		if v.Choice {
			p.Value = 1
		}
		s.TimeSeriesData = append(s.TimeSeriesData, p)

		sum += p.Value
		if i >= RunningWindow {
			sum -= s.TimeSeriesData[i-RunningWindow].Value
		}
		n := i + 1
		if n > RunningWindow {
			n = RunningWindow
		}
		s.RunningAverage = append(s.RunningAverage, Point{Timestamp: v.CreatedAt, Value: sum / float64(n)})
	}
	return s
}

// Bucketer reads the recent votes of one subject and builds its series.
type Bucketer struct {
	votes models.VoteRepository
	clock clock.Clock
}

func NewBucketer(votes models.VoteRepository, clk clock.Clock) *Bucketer {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Bucketer{votes: votes, clock: clk}
}

// Series returns the series for votes created in the last days days.
// days above MaxDays is clamped.
func (b *Bucketer) Series(ctx context.Context, subjectID, locationID string, days int) (Series, error) {
	if subjectID == "" {
		return Series{}, &ValidationError{Message: "subject_id parameter is required"}
	}
	if days < 1 {
		return Series{}, &ValidationError{Message: "days must be a positive integer"}
	}

	if days > MaxDays {
		days = MaxDays
	}

	since := b.clock.Now().AddDate(0, 0, -days)
	rows, err := b.votes.Since(ctx, subjectID, locationID, since)
	if err != nil {
		return Series{}, err
	}
	return BuildSeries(rows), nil
}
