package votes_test

import (
	"context"
	"errors"
	"testing"

	"flashvote/mocks"
	"flashvote/models"
	"flashvote/votes"
)

func TestPercentages(t *testing.T) {
	cases := []struct {
		pos, neg         int
		wantPos, wantNeg int
	}{
		{0, 0, 50, 50},
		{3, 1, 75, 25},
		{2, 1, 67, 33},
		{1, 0, 100, 0},
		{0, 4, 0, 100},
		{1, 7, 13, 88}, // 12.5 → 13, 87.5 → 88
	}
	for _, tc := range cases {
		p, n := votes.Percentages(tc.pos, tc.neg)
		if p != tc.wantPos || n != tc.wantNeg {
			t.Errorf("Percentages(%d,%d) = %d/%d, want %d/%d", tc.pos, tc.neg, p, n, tc.wantPos, tc.wantNeg)
		}
	}
}

func TestTally_KeysEqualRequestedSet(t *testing.T) {
	ids := []string{"a", "b", "c"}
	rows := []models.VoteChoice{
		{SubjectID: "a", Choice: true},
		{SubjectID: "a", Choice: false},
		{SubjectID: "a", Choice: true},
		{SubjectID: "zzz", Choice: true}, // 沒被要求的 subject
	}
	got := votes.Tally(ids, rows)

	if len(got) != len(ids) {
		t.Fatalf("got %d keys, want %d: %v", len(got), len(ids), got)
	}
	for _, id := range ids {
		if _, ok := got[id]; !ok {
			t.Fatalf("missing key %q", id)
		}
	}
	if got["a"] != (votes.Counts{Positive: 2, Negative: 1}) {
		t.Fatalf("a = %+v", got["a"])
	}
	if got["b"] != (votes.Counts{}) || got["c"] != (votes.Counts{}) {
		t.Fatalf("zero subjects not zero: %v", got)
	}
}

func TestAggregator_Batch(t *testing.T) {
	repo := mocks.NewVoteRepo()
	loc := "loc1"
	ctx := context.Background()
	for _, v := range []models.Vote{
		{ID: "1", SubjectID: "s1", Choice: true},
		{ID: "2", SubjectID: "s1", Choice: true},
		{ID: "3", SubjectID: "s1", Choice: false, LocationID: &loc},
		{ID: "4", SubjectID: "s2", Choice: true, LocationID: &loc},
	} {
		v := v
		_ = repo.Insert(ctx, &v)
	}
	agg := votes.NewAggregator(repo, nil)

	all, err := agg.Batch(ctx, []string{"s1", "s2", "s3"}, "")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if all["s1"] != (votes.Counts{Positive: 2, Negative: 1}) {
		t.Fatalf("s1 = %+v", all["s1"])
	}
	if p, n := all["s1"].Percentages(); p != 67 || n != 33 {
		t.Fatalf("s1 percentages = %d/%d, want 67/33", p, n)
	}
	if len(all) != 3 {
		t.Fatalf("keys = %v", all)
	}

	byLoc, err := agg.Batch(ctx, []string{"s1", "s2"}, loc)
	if err != nil {
		t.Fatalf("batch by location: %v", err)
	}
	if byLoc["s1"] != (votes.Counts{Negative: 1}) || byLoc["s2"] != (votes.Counts{Positive: 1}) {
		t.Fatalf("by location = %v", byLoc)
	}
}

func TestAggregator_EmptySet(t *testing.T) {
	agg := votes.NewAggregator(mocks.NewVoteRepo(), nil)
	if _, err := agg.Batch(context.Background(), nil, ""); !errors.Is(err, votes.ErrNoSubjects) {
		t.Fatalf("want ErrNoSubjects, got %v", err)
	}
}
