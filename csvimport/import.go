package csvimport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flashvote/models"
)

// Failure is one rejected data row; Row counts data rows from 1.
type Failure struct {
	Row   int    `json:"row"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// Report is the outcome of a bulk import.
type Report struct {
	Successful  int       `json:"successful"`
	Failed      []Failure `json:"failed"`
	ParseErrors []string  `json:"parse_errors"`
}

func newReport(t Table) Report {
	return Report{Failed: []Failure{}, ParseErrors: t.Errors}
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func parseCoord(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}

// LocationHeaders are the accepted spellings of the required location name column.
var LocationHeaders = []string{"name", "locationName"}

// LocationFromRow validates one CSV row as a location of eventID.
func LocationFromRow(r Row, eventID string) (models.Location, error) {
	l := models.Location{
		EventID: eventID,
		Name:    strings.TrimSpace(r.Get("locationName", "name")),
		Address: optional(r.Get("address")),
		City:    optional(r.Get("city")),
		ZipCode: optional(r.Get("zip", "zip_code")),
	}
	var err error
	if l.Lat, err = parseCoord(r.Get("lat"), "Latitude"); err != nil {
		return l, err
	}
	if l.Lon, err = parseCoord(r.Get("lon"), "Longitude"); err != nil {
		return l, err
	}
	return l, l.Validate()
}

func duplicateLocation(a, b models.Location) bool {
	return strings.EqualFold(a.Name, b.Name) &&
		sameOptional(a.Address, b.Address) &&
		sameOptional(a.City, b.City) &&
		sameOptional(a.ZipCode, b.ZipCode)
}

// ImportLocations creates one location per valid row. Rows duplicating an
// existing location, or an earlier row of the same file, are rejected.
func ImportLocations(ctx context.Context, t Table, eventID string, existing []models.Location, create func(context.Context, *models.Location) error) Report {
	rep := newReport(t)
	seen := append([]models.Location(nil), existing...)

	for i, r := range t.Rows {
		fail := func(err error) {
			rep.Failed = append(rep.Failed, Failure{Row: i + 1, Name: r.Get("locationName", "name"), Error: err.Error()})
		}

		l, err := LocationFromRow(r, eventID)
		if err != nil {
			fail(err)
			continue
		}
		dup := false
		for _, s := range seen {
			if duplicateLocation(l, s) {
				dup = true
				break
			}
		}
		if dup {
			fail(fmt.Errorf("Duplicate location found with name %q", l.Name))
			continue
		}

		now := time.Now().UTC()
		l.ID, l.CreatedAt, l.UpdatedAt = uuid.NewString(), now, now
		if err := create(ctx, &l); err != nil {
			fail(errors.New("Failed to insert location"))
			continue
		}
		rep.Successful++
		seen = append(seen, l)
	}
	return rep
}

// ItemHeaders are required in an item import.
var ItemHeaders = []string{"item_slug", "name"}

// ItemFromRow validates one CSV row as an item of eventID.
func ItemFromRow(r Row, eventID string) (models.Item, error) {
	it := models.Item{
		EventID:  eventID,
		Slug:     strings.TrimSpace(r.Get("item_slug")),
		Name:     strings.TrimSpace(r.Get("name")),
		ItemID:   optional(r.Get("item_id")),
		Category: optional(r.Get("category")),
		ImageURL: optional(r.Get("image_url")),
	}
	return it, it.Validate()
}

// ImportItems creates one item per valid row; create is expected to add the
// item's default subject as well.
func ImportItems(ctx context.Context, t Table, eventID string, existing []models.Item, create func(context.Context, *models.Item) error) Report {
	rep := newReport(t)
	slugs := make(map[string]bool, len(existing))
	for _, it := range existing {
		slugs[it.Slug] = true
	}

	for i, r := range t.Rows {
		fail := func(err error) {
			rep.Failed = append(rep.Failed, Failure{Row: i + 1, Name: r.Get("name"), Error: err.Error()})
		}

		it, err := ItemFromRow(r, eventID)
		if err != nil {
			fail(err)
			continue
		}
		if slugs[it.Slug] {
			fail(fmt.Errorf("Item slug %q already exists for this event", it.Slug))
			continue
		}
		// 同一批裡也不能重複
		slugs[it.Slug] = true

		now := time.Now().UTC()
		it.ID, it.CreatedAt, it.UpdatedAt = uuid.NewString(), now, now
		if err := create(ctx, &it); err != nil {
			fail(errors.New("Failed to create item"))
			continue
		}
		rep.Successful++
	}
	return rep
}
