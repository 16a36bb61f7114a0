package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"flashvote/models"
)

func (h *handler) eventBySlug(c *gin.Context) (models.Event, bool) {
	ev, err := h.Events.GetBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Event not found")
		return models.Event{}, false
	}
	if err != nil {
		internalError(c, err, "Could not fetch event. Try again later.")
		return models.Event{}, false
	}
	return ev, true
}

// GET /e/:slug
func (h *handler) publicEvent(c *gin.Context) {
	ev, ok := h.eventBySlug(c)
	if !ok {
		return
	}
	// 封存的活動還能看，但不給投票內容
	if ev.Archived() {
		c.JSON(http.StatusOK, gin.H{"event": ev, "archived": true})
		return
	}

	ctx := c.Request.Context()
	items, err := h.Items.ListByEvent(ctx, ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch items. Try again later.")
		return
	}
	all, err := h.Subjects.ListByEvent(ctx, ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch subjects. Try again later.")
		return
	}
	subjects := make([]models.Subject, 0, len(all))
	for _, s := range all {
		if s.ItemID == nil {
			subjects = append(subjects, s)
		}
	}

	c.JSON(http.StatusOK, gin.H{"event": ev, "items": items, "subjects": subjects, "archived": false})
}

// GET /e/:slug/:itemSlug
func (h *handler) publicItem(c *gin.Context) {
	ev, ok := h.eventBySlug(c)
	if !ok {
		return
	}
	if ev.Archived() {
		c.JSON(http.StatusOK, gin.H{"event": ev, "archived": true})
		return
	}

	ctx := c.Request.Context()
	it, err := h.Items.GetBySlug(ctx, ev.ID, c.Param("itemSlug"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Item not found")
		return
	}
	if err != nil {
		internalError(c, err, "Could not fetch item. Try again later.")
		return
	}
	all, err := h.Subjects.ListByItem(ctx, it.ID)
	if err != nil {
		internalError(c, err, "Could not fetch subjects. Try again later.")
		return
	}

	var def *models.Subject
	subjects := make([]models.Subject, 0, len(all))
	for i := range all {
		if all[i].IsDefault() && def == nil {
			def = &all[i]
			continue
		}
		subjects = append(subjects, all[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"event":           ev,
		"item":            it,
		"default_subject": def,
		"subjects":        subjects,
		"archived":        false,
	})
}
