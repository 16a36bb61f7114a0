package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flashvote/csvimport"
	"flashvote/models"
)

type locationInput struct {
	Name    string   `json:"name"`
	Address *string  `json:"address"`
	City    *string  `json:"city"`
	ZipCode *string  `json:"zip_code"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (in locationInput) apply(l *models.Location) {
	l.Name = strings.TrimSpace(in.Name)
	l.Address, l.City, l.ZipCode = in.Address, in.City, in.ZipCode
	l.Lat, l.Lon = in.Lat, in.Lon
}

// GET /locations/:id（公開）
func (h *handler) getLocation(c *gin.Context) {
	l, err := h.Locations.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Location not found")
		return
	}
	if err != nil {
		internalError(c, err, "Failed to fetch location")
		return
	}
	c.JSON(http.StatusOK, l)
}

// GET /locations/search?zip_code=&event_id=
func (h *handler) searchLocations(c *gin.Context) {
	zip := strings.TrimSpace(c.Query("zip_code"))
	if zip == "" {
		badRequest(c, "Zip code is required for search")
		return
	}
	locs, err := h.Locations.SearchByZip(c.Request.Context(), zip, c.Query("event_id"))
	if err != nil {
		internalError(c, err, "Failed to search locations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locs})
}

// GET /events/:id/locations
func (h *handler) listLocations(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessView, "view this event")
	if !ok {
		return
	}
	locs, err := h.Locations.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch locations. Try again later.")
		return
	}
	c.JSON(http.StatusOK, locs)
}

// POST /events/:id/locations
func (h *handler) createLocation(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessEdit, "add locations to this event")
	if !ok {
		return
	}
	var in locationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}

	now := h.Clock.Now()
	l := models.Location{ID: uuid.NewString(), EventID: ev.ID, CreatedAt: now, UpdatedAt: now}
	in.apply(&l)
	if err := l.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Locations.Create(c.Request.Context(), &l); err != nil {
		internalError(c, err, "Failed to insert location")
		return
	}

	h.Invalidator.PurgeLocations(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"message": "Location created!", "location": l})
}

// POST /events/:id/locations/bulk  body: {"csv": "..."}
func (h *handler) bulkLocations(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessEdit, "add locations to this event")
	if !ok {
		return
	}
	var in bulkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Missing required field: csv")
		return
	}
	t, err := csvimport.Parse(in.CSV)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	// name 或 locationName 其一即可
	if !t.HasAny(csvimport.LocationHeaders...) {
		badRequest(c, csvimport.ErrMissingFields.Error()+": name")
		return
	}
	if len(t.Rows) == 0 {
		badRequest(c, csvimport.ErrNoRows.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.Locations.ListByEvent(ctx, ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch locations. Try again later.")
		return
	}
	rep := csvimport.ImportLocations(ctx, t, ev.ID, existing, h.Locations.Create)

	if rep.Successful > 0 {
		h.Invalidator.PurgeLocations(ctx)
	}
	c.JSON(http.StatusOK, rep)
}

func (h *handler) locationFor(c *gin.Context, action string) (models.Location, bool) {
	l, err := h.Locations.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Location not found")
		return models.Location{}, false
	}
	if err != nil {
		internalError(c, err, "Failed to fetch location")
		return models.Location{}, false
	}
	_, ok := h.eventFor(c, l.EventID, accessEdit, action)
	return l, ok
}

// PUT /locations/:id
func (h *handler) updateLocation(c *gin.Context) {
	l, ok := h.locationFor(c, "edit locations of this event")
	if !ok {
		return
	}
	var in locationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	in.apply(&l)
	l.UpdatedAt = h.Clock.Now()
	if err := l.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Locations.Update(c.Request.Context(), &l); err != nil {
		internalError(c, err, "Failed to update location")
		return
	}

	h.Invalidator.PurgeLocations(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Location updated!", "location": l})
}

// DELETE /locations/:id：既有票的 location_id 會被設成 NULL
func (h *handler) deleteLocation(c *gin.Context) {
	l, ok := h.locationFor(c, "delete locations of this event")
	if !ok {
		return
	}
	if err := h.Locations.Delete(c.Request.Context(), l.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		internalError(c, err, "Failed to delete location")
		return
	}

	h.Invalidator.PurgeLocations(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Location deleted!"})
}
