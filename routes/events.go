package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flashvote/models"
)

type eventInput struct {
	Title    string         `json:"title" binding:"required"`
	Slug     string         `json:"slug" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

func (in eventInput) validate() string {
	if strings.TrimSpace(in.Title) == "" {
		return "Title is required"
	}
	if !models.ValidSlug(in.Slug) {
		return "Slug can only contain lowercase letters, numbers, hyphens, and underscores"
	}
	return ""
}

// GET /events：自己建立的 + 被授權管理的
func (h *handler) listEvents(c *gin.Context) {
	ctx := c.Request.Context()
	uid := c.GetInt64("userId")

	owned, err := h.Events.ListByOwner(ctx, uid)
	if err != nil {
		internalError(c, err, "Could not fetch events. Try again later.")
		return
	}
	grants, err := h.Admins.ListByUser(ctx, uid)
	if err != nil {
		internalError(c, err, "Could not fetch events. Try again later.")
		return
	}
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.EventID)
	}
	shared, err := h.Events.ListByIDs(ctx, ids)
	if err != nil {
		internalError(c, err, "Could not fetch events. Try again later.")
		return
	}

	seen := make(map[string]bool, len(owned))
	out := make([]models.Event, 0, len(owned)+len(shared))
	for _, e := range append(owned, shared...) {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	c.JSON(http.StatusOK, out)
}

// GET /events/:id
func (h *handler) getEvent(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessView, "view this event")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

// POST /events
func (h *handler) createEvent(c *gin.Context) {
	var in eventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	if msg := in.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	now := h.Clock.Now()
	ev := models.Event{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Slug:      in.Slug,
		OwnerID:   c.GetInt64("userId"),
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Events.Create(c.Request.Context(), &ev); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "An event with this slug already exists"})
			return
		}
		internalError(c, err, "Could not create event. Try again later.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Event created!", "event": ev})
}

// PUT /events/:id
func (h *handler) updateEvent(c *gin.Context) {
	old, ok := h.eventFor(c, c.Param("id"), accessEdit, "edit this event")
	if !ok {
		return
	}

	var in eventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	if msg := in.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	ev := old
	ev.Title, ev.Slug, ev.Metadata, ev.UpdatedAt = strings.TrimSpace(in.Title), in.Slug, in.Metadata, h.Clock.Now()
	if err := h.Events.Update(c.Request.Context(), &ev); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "An event with this slug already exists"})
			return
		}
		internalError(c, err, "Could not update event. Try again later.")
		return
	}

	// 事件後：清公開頁快取（slug 可能換了，新舊都清）
	h.Invalidator.PurgeEventPages(c.Request.Context(), old.Slug)
	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)

	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": ev})
}

// DELETE /events/:id
func (h *handler) deleteEvent(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessOwner, "delete this event")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// events 在 Mongo，SQL 這邊的子資料要自己清
	if err := h.deleteEventChildren(c, ev.ID); err != nil {
		internalError(c, err, "Could not delete the event.")
		return
	}
	if err := h.Events.Delete(ctx, ev.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		internalError(c, err, "Could not delete the event.")
		return
	}

	h.Invalidator.PurgeEventPages(ctx, ev.Slug)
	h.Invalidator.PurgeLocations(ctx)
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}

func (h *handler) deleteEventChildren(c *gin.Context, eventID string) error {
	ctx := c.Request.Context()

	subjects, err := h.Subjects.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, s := range subjects {
		if err := h.Subjects.Delete(ctx, s.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	items, err := h.Items.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := h.Items.Delete(ctx, it.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	locs, err := h.Locations.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, l := range locs {
		if err := h.Locations.Delete(ctx, l.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	return h.Admins.DeleteByEvent(ctx, eventID)
}

func (h *handler) setArchived(c *gin.Context, archive bool) {
	ev, ok := h.eventFor(c, c.Param("id"), accessOwner, "archive this event")
	if !ok {
		return
	}

	var at *time.Time
	if archive {
		now := h.Clock.Now()
		at = &now
	}
	if err := h.Events.SetArchived(c.Request.Context(), ev.ID, at); err != nil {
		internalError(c, err, "Could not update event. Try again later.")
		return
	}
	ev.ArchivedAt = at
	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)

	msg := "Event unarchived."
	if archive {
		msg = "Event archived."
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "event": ev})
}

// POST /events/:id/archive
func (h *handler) archiveEvent(c *gin.Context) { h.setArchived(c, true) }

// POST /events/:id/unarchive
func (h *handler) unarchiveEvent(c *gin.Context) { h.setArchived(c, false) }

/* --------------- Admin grants ------------------ */

// GET /events/:id/admins
func (h *handler) listAdmins(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessView, "view this event")
	if !ok {
		return
	}
	admins, err := h.Admins.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch admins. Try again later.")
		return
	}
	c.JSON(http.StatusOK, admins)
}

// POST /events/:id/admins
func (h *handler) grantAdmin(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessOwner, "manage admins of this event")
	if !ok {
		return
	}

	var in struct {
		UserID int64  `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	if in.Role == "" {
		in.Role = models.RoleEditor
	}
	if in.Role != models.RoleEditor && in.Role != models.RoleViewer {
		badRequest(c, "Role must be editor or viewer")
		return
	}
	if in.UserID == ev.OwnerID {
		badRequest(c, "The owner already has full access")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "User not found")
			return
		}
		internalError(c, err, "Could not fetch user. Try again later.")
		return
	}

	a := models.Admin{EventID: ev.ID, UserID: in.UserID, Role: in.Role}
	if err := h.Admins.Grant(ctx, &a); err != nil {
		internalError(c, err, "Could not grant access. Try again later.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Access granted!", "admin": a})
}

// DELETE /events/:id/admins/:userId
func (h *handler) revokeAdmin(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessOwner, "manage admins of this event")
	if !ok {
		return
	}
	uid, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid user id")
		return
	}

	if err := h.Admins.Revoke(c.Request.Context(), ev.ID, uid); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "Admin not found")
			return
		}
		internalError(c, err, "Could not revoke access. Try again later.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Access revoked!"})
}
