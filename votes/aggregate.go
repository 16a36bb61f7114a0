package votes

import (
	"context"
	"math"

	"flashvote/metrics"
	"flashvote/models"
)

// Counts is the aggregate of one subject under a given filter.
type Counts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

func (c Counts) Total() int { return c.Positive + c.Negative }

// Percentages returns the rounded positive and negative shares of c.
func (c Counts) Percentages() (pos, neg int) {
	return Percentages(c.Positive, c.Negative)
}

// Percentages returns round(p/(p+n)*100) and round(n/(p+n)*100), both 50
// when there are no votes.
func Percentages(positive, negative int) (pos, neg int) {
	total := positive + negative
	if total == 0 {
		return 50, 50
	}
	pos = int(math.Round(float64(positive) / float64(total) * 100))
	neg = int(math.Round(float64(negative) / float64(total) * 100))
	return pos, neg
}

// Tally counts rows per subject. Every id in subjectIDs is present in the
// result, rows for other subjects are ignored.
func Tally(subjectIDs []string, rows []models.VoteChoice) map[string]Counts {
	out := make(map[string]Counts, len(subjectIDs))
	for _, id := range subjectIDs {
		out[id] = Counts{}
	}
	for _, r := range rows {
		c, ok := out[r.SubjectID]
		if !ok {
			continue
		}
		if r.Choice {
			c.Positive++
		} else {
			c.Negative++
		}
		out[r.SubjectID] = c
	}
	return out
}

// Aggregator computes counts for a batch of subjects with one bulk read.
type Aggregator struct {
	votes   models.VoteRepository
	metrics *metrics.Metrics
}

func NewAggregator(votes models.VoteRepository, m *metrics.Metrics) *Aggregator {
	return &Aggregator{votes: votes, metrics: m}
}

func (a *Aggregator) Batch(ctx context.Context, subjectIDs []string, locationID string) (map[string]Counts, error) {
	if len(subjectIDs) == 0 {
		return nil, ErrNoSubjects
	}
	a.metrics.BatchRequested(len(subjectIDs))

	rows, err := a.votes.Choices(ctx, subjectIDs, locationID)
	if err != nil {
		return nil, err
	}
	return Tally(subjectIDs, rows), nil
}
