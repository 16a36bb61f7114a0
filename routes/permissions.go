package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"flashvote/models"
)

type access int

const (
	accessNone access = iota
	accessView        // viewer 授權
	accessEdit        // editor 授權
	accessOwner
)

func (h *handler) accessTo(ctx context.Context, ev models.Event, userID int64) (access, error) {
	if userID == 0 {
		return accessNone, nil
	}
	if ev.OwnerID == userID {
		return accessOwner, nil
	}
	role, err := h.Admins.Role(ctx, ev.ID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return accessNone, nil
	}
	if err != nil {
		return accessNone, err
	}
	if role == models.RoleViewer {
		return accessView, nil
	}
	return accessEdit, nil
}

// eventFor loads the event and checks the caller's access. On failure it
// writes the response and returns false.
func (h *handler) eventFor(c *gin.Context, eventID string, need access, action string) (models.Event, bool) {
	ev, err := h.Events.GetByID(c.Request.Context(), eventID)
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Event not found")
		return models.Event{}, false
	}
	if err != nil {
		internalError(c, err, "Could not fetch event. Try again later.")
		return models.Event{}, false
	}

	got, err := h.accessTo(c.Request.Context(), ev, c.GetInt64("userId"))
	if err != nil {
		internalError(c, err, "Could not check permissions. Try again later.")
		return models.Event{}, false
	}
	if got < need {
		c.JSON(http.StatusForbidden, gin.H{"message": "You do not have permission to " + action + "."})
		return models.Event{}, false
	}
	return ev, true
}
