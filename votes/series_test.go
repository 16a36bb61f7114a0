package votes_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"flashvote/clock"
	"flashvote/mocks"
	"flashvote/models"
	"flashvote/votes"
)

func votesAt(values ...bool) []models.Vote {
	out := make([]models.Vote, len(values))
	for i, v := range values {
		out[i] = models.Vote{SubjectID: "s1", Choice: v, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestBuildSeries_ThreePoints(t *testing.T) {
	s := votes.BuildSeries(votesAt(true, false, true))

	if len(s.TimeSeriesData) != 3 || len(s.RunningAverage) != 3 {
		t.Fatalf("lengths = %d/%d", len(s.TimeSeriesData), len(s.RunningAverage))
	}
	want := []float64{1, 0, 1}
	for i, p := range s.TimeSeriesData {
		if p.Value != want[i] {
			t.Fatalf("raw[%d] = %v, want %v", i, p.Value, want[i])
		}
	}
	if got := s.RunningAverage[2].Value; math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("running average[2] = %v, want 0.667", got)
	}
	if !s.RunningAverage[1].Timestamp.Equal(t0.Add(time.Minute)) {
		t.Fatalf("running average timestamps must follow the raw points")
	}
}

func TestBuildSeries_TrailingWindowOfFive(t *testing.T) {
	values := []bool{true, true, false, true, false, false, false, true, true, false}
	s := votes.BuildSeries(votesAt(values...))

	for i := range values {
		lo := i - 4
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		for j := lo; j <= i; j++ {
			sum += s.TimeSeriesData[j].Value
		}
		want := sum / float64(i-lo+1)
		if got := s.RunningAverage[i].Value; math.Abs(got-want) > 1e-9 {
			t.Fatalf("running average[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestBuildSeries_EmptyIsNotNil(t *testing.T) {
	s := votes.BuildSeries(nil)
	if s.TimeSeriesData == nil || s.RunningAverage == nil {
		t.Fatalf("empty series must be non-nil slices")
	}
}

func TestBucketer_LookbackAndLocation(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewVoteRepo()
	loc := "loc1"
	now := t0.Add(40 * 24 * time.Hour)
	for i, v := range []models.Vote{
		{SubjectID: "s1", Choice: true, CreatedAt: now.Add(-35 * 24 * time.Hour)}, // 超過 30 天
		{SubjectID: "s1", Choice: false, CreatedAt: now.Add(-2 * time.Hour)},
		{SubjectID: "s1", Choice: true, CreatedAt: now.Add(-3 * time.Hour), LocationID: &loc},
		{SubjectID: "s2", Choice: true, CreatedAt: now.Add(-time.Hour)},
	} {
		v := v
		v.ID = string(rune('a' + i))
		_ = repo.Insert(ctx, &v)
	}
	b := votes.NewBucketer(repo, clock.NewManual(now))

	s, err := b.Series(ctx, "s1", "", votes.DefaultDays)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(s.TimeSeriesData) != 2 {
		t.Fatalf("got %d points, want 2", len(s.TimeSeriesData))
	}
	// 依時間遞增
	if s.TimeSeriesData[0].Value != 1 || s.TimeSeriesData[1].Value != 0 {
		t.Fatalf("points out of order: %+v", s.TimeSeriesData)
	}

	s, err = b.Series(ctx, "s1", loc, 60)
	if err != nil {
		t.Fatalf("series by location: %v", err)
	}
	if len(s.TimeSeriesData) != 1 {
		t.Fatalf("by location got %d points, want 1", len(s.TimeSeriesData))
	}
}

func TestBucketer_Validation(t *testing.T) {
	b := votes.NewBucketer(mocks.NewVoteRepo(), nil)
	var ve *votes.ValidationError
	if _, err := b.Series(context.Background(), "", "", 30); !errors.As(err, &ve) {
		t.Fatalf("missing subject: want ValidationError, got %v", err)
	}
	if _, err := b.Series(context.Background(), "s1", "", 0); !errors.As(err, &ve) {
		t.Fatalf("days=0: want ValidationError, got %v", err)
	}
}

func TestBucketer_HugeLookbackIsClamped(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewVoteRepo()
	now := t0.Add(40 * 24 * time.Hour)
	_ = repo.Insert(ctx, &models.Vote{ID: "v1", SubjectID: "s1", Choice: true, CreatedAt: now.Add(-48 * time.Hour)})
	b := votes.NewBucketer(repo, clock.NewManual(now))

	for _, days := range []int{30, 100000, 200000, votes.MaxDays + 1, 1 << 40} {
		s, err := b.Series(ctx, "s1", "", days)
		if err != nil {
			t.Fatalf("days=%d: %v", days, err)
		}
		if len(s.TimeSeriesData) != 1 {
			t.Fatalf("days=%d: got %d points, want 1", days, len(s.TimeSeriesData))
		}
	}
}
