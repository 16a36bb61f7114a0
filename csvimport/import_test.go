package csvimport_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"flashvote/csvimport"
	"flashvote/models"
)

func mustParse(t *testing.T, text string, required ...string) csvimport.Table {
	t.Helper()
	tbl, err := csvimport.Parse(text, required...)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tbl
}

func TestImportLocations_OneBadRowAmongFive(t *testing.T) {
	text := strings.Join([]string{
		"locationName,address,city,zip,lat,lon",
		"Stand A,1 Main,Portland,97201,45.5,-122.6",
		"Stand B,2 Main,Portland,97201,,",
		"Stand C,3 Main,Portland,97202,45.1,-122.1",
		"Stand D,4 Main,Salem,97301,,",
		",5 Main,Salem,97301,,", // 沒有名字
		"Stand E,6 Main,Salem,97302,44.9,-123.0",
	}, "\n")
	tbl := mustParse(t, text)

	var created []models.Location
	rep := csvimport.ImportLocations(context.Background(), tbl, "e1", nil, func(_ context.Context, l *models.Location) error {
		created = append(created, *l)
		return nil
	})

	if rep.Successful != 5 || len(created) != 5 {
		t.Fatalf("successful = %d (created %d), want 5", rep.Successful, len(created))
	}
	if len(rep.Failed) != 1 {
		t.Fatalf("failed = %+v, want exactly one", rep.Failed)
	}
	if rep.Failed[0].Row != 5 || rep.Failed[0].Error != "Location name is required" {
		t.Fatalf("failure = %+v", rep.Failed[0])
	}
	first := created[0]
	if first.ID == "" || first.EventID != "e1" || first.Lat == nil || *first.Lat != 45.5 || *first.ZipCode != "97201" {
		t.Fatalf("first location = %+v", first)
	}
	if created[1].Lat != nil {
		t.Fatalf("blank lat should stay nil")
	}
}

func TestImportLocations_Duplicates(t *testing.T) {
	addr := "1 Main"
	existing := []models.Location{{ID: "x", EventID: "e1", Name: "Stand A", Address: &addr}}
	text := "name,address\nstand a,1 Main\nStand B,2 Main\nSTAND B,2 Main\nStand C,bad\n"
	tbl := mustParse(t, text)

	rep := csvimport.ImportLocations(context.Background(), tbl, "e1", existing, func(context.Context, *models.Location) error { return nil })
	if rep.Successful != 2 {
		t.Fatalf("successful = %d, want 2", rep.Successful)
	}
	if len(rep.Failed) != 2 || rep.Failed[0].Row != 1 || rep.Failed[1].Row != 3 {
		t.Fatalf("failed = %+v", rep.Failed)
	}
	if !strings.HasPrefix(rep.Failed[0].Error, "Duplicate location found") {
		t.Fatalf("error = %q", rep.Failed[0].Error)
	}
}

func TestLocationFromRow_Coordinates(t *testing.T) {
	cases := []struct {
		lat, lon string
		wantErr  string
	}{
		{"45", "-122", ""},
		{"abc", "", "Latitude must be a number"},
		{"91", "", "Latitude must be between -90 and 90"},
		{"", "181", "Longitude must be between -180 and 180"},
	}
	for _, tc := range cases {
		r := csvimport.Row{Fields: map[string]string{"name": "X", "lat": tc.lat, "lon": tc.lon}}
		_, err := csvimport.LocationFromRow(r, "e1")
		got := ""
		if err != nil {
			got = err.Error()
		}
		if got != tc.wantErr {
			t.Errorf("lat=%q lon=%q: err=%q want %q", tc.lat, tc.lon, got, tc.wantErr)
		}
	}
}

func TestImportItems(t *testing.T) {
	existing := []models.Item{{ID: "i0", EventID: "e1", Slug: "taken"}}
	text := strings.Join([]string{
		"item_slug,name,item_id,category",
		"chili-dog,Chili Dog,SKU1,hot",
		"Bad Slug,Nope,,",
		"taken,Dup,,",
		"corn_dog,Corn Dog,,",
		"corn_dog,Corn Dog Again,,",
		"brat,,,",
	}, "\n")
	tbl := mustParse(t, text, csvimport.ItemHeaders...)

	var created []models.Item
	rep := csvimport.ImportItems(context.Background(), tbl, "e1", existing, func(_ context.Context, it *models.Item) error {
		created = append(created, *it)
		return nil
	})

	if rep.Successful != 2 || len(created) != 2 {
		t.Fatalf("successful = %d, want 2", rep.Successful)
	}
	wantRows := []int{2, 3, 5, 6}
	if len(rep.Failed) != len(wantRows) {
		t.Fatalf("failed = %+v", rep.Failed)
	}
	for i, row := range wantRows {
		if rep.Failed[i].Row != row {
			t.Fatalf("failure %d is row %d, want %d", i, rep.Failed[i].Row, row)
		}
	}
	if created[0].ItemID == nil || *created[0].ItemID != "SKU1" || created[1].ItemID != nil {
		t.Fatalf("item ids = %v / %v", created[0].ItemID, created[1].ItemID)
	}
}

func TestImportItems_CreateFailure(t *testing.T) {
	tbl := mustParse(t, "item_slug,name\na,A\nb,B\n")
	calls := 0
	rep := csvimport.ImportItems(context.Background(), tbl, "e1", nil, func(context.Context, *models.Item) error {
		calls++
		if calls == 1 {
			return errors.New("db down")
		}
		return nil
	})
	if rep.Successful != 1 || len(rep.Failed) != 1 || rep.Failed[0].Error != "Failed to create item" {
		t.Fatalf("report = %+v", rep)
	}
}
