package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flashvote/csvimport"
	"flashvote/models"
)

type itemInput struct {
	Slug     string  `json:"item_slug"`
	Name     string  `json:"name"`
	ItemID   *string `json:"item_id"`
	Category *string `json:"category"`
	ImageURL *string `json:"image_url"`
}

type bulkInput struct {
	CSV string `json:"csv" binding:"required"`
}

// GET /events/:id/items
func (h *handler) listItems(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessView, "view this event")
	if !ok {
		return
	}
	items, err := h.Items.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch items. Try again later.")
		return
	}
	c.JSON(http.StatusOK, items)
}

// insertItem stores it together with its default subject. If the subject
// cannot be created the item is removed again.
func (h *handler) insertItem(ctx context.Context, it *models.Item) error {
	if err := h.Items.Create(ctx, it); err != nil {
		return err
	}
	s := models.NewDefaultSubject(it.EventID, it.ID)
	s.ID, s.CreatedAt = uuid.NewString(), h.Clock.Now()
	if err := h.Subjects.Create(ctx, &s); err != nil {
		_ = h.Items.Delete(ctx, it.ID)
		return err
	}
	return nil
}

// POST /events/:id/items
func (h *handler) createItem(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessEdit, "add items to this event")
	if !ok {
		return
	}

	var in itemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	now := h.Clock.Now()
	it := models.Item{
		ID:        uuid.NewString(),
		EventID:   ev.ID,
		Slug:      strings.TrimSpace(in.Slug),
		Name:      strings.TrimSpace(in.Name),
		ItemID:    in.ItemID,
		Category:  in.Category,
		ImageURL:  in.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := it.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.insertItem(c.Request.Context(), &it); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "Item slug already exists for this event"})
			return
		}
		internalError(c, err, "Failed to create item")
		return
	}

	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)
	c.JSON(http.StatusCreated, gin.H{"message": "Item created!", "item": it})
}

// POST /events/:id/items/bulk  body: {"csv": "..."}
func (h *handler) bulkItems(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessEdit, "add items to this event")
	if !ok {
		return
	}
	var in bulkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Missing required field: csv")
		return
	}
	t, err := csvimport.Parse(in.CSV, csvimport.ItemHeaders...)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if len(t.Rows) == 0 {
		badRequest(c, csvimport.ErrNoRows.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.Items.ListByEvent(ctx, ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch items. Try again later.")
		return
	}
	rep := csvimport.ImportItems(ctx, t, ev.ID, existing, h.insertItem)

	if rep.Successful > 0 {
		h.Invalidator.PurgeEventPages(ctx, ev.Slug)
	}
	c.JSON(http.StatusOK, rep)
}

// itemFor loads the item and the event it belongs to, checking access.
func (h *handler) itemFor(c *gin.Context, need access, action string) (models.Item, models.Event, bool) {
	it, err := h.Items.GetByID(c.Request.Context(), c.Param("itemId"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Item not found")
		return models.Item{}, models.Event{}, false
	}
	if err != nil {
		internalError(c, err, "Could not fetch item. Try again later.")
		return models.Item{}, models.Event{}, false
	}
	ev, ok := h.eventFor(c, it.EventID, need, action)
	return it, ev, ok
}

// PUT /items/:itemId
func (h *handler) updateItem(c *gin.Context) {
	it, ev, ok := h.itemFor(c, accessEdit, "edit items of this event")
	if !ok {
		return
	}
	var in itemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}

	it.Slug, it.Name = strings.TrimSpace(in.Slug), strings.TrimSpace(in.Name)
	it.ItemID, it.Category, it.ImageURL = in.ItemID, in.Category, in.ImageURL
	it.UpdatedAt = h.Clock.Now()
	if err := it.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Items.Update(c.Request.Context(), &it); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "Item slug already exists for this event"})
			return
		}
		internalError(c, err, "Failed to update item")
		return
	}

	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Item updated!", "item": it})
}

// DELETE /items/:itemId：subjects 跟著 item 一起刪
func (h *handler) deleteItem(c *gin.Context) {
	it, ev, ok := h.itemFor(c, accessEdit, "delete items of this event")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	subjects, err := h.Subjects.ListByItem(ctx, it.ID)
	if err != nil {
		internalError(c, err, "Failed to delete item")
		return
	}
	for _, s := range subjects {
		if err := h.Subjects.Delete(ctx, s.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			internalError(c, err, "Failed to delete item")
			return
		}
	}
	if err := h.Items.Delete(ctx, it.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		internalError(c, err, "Failed to delete item")
		return
	}

	h.Invalidator.PurgeEventPages(ctx, ev.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted!"})
}

/* --------------- Subjects ------------------ */

type subjectInput struct {
	ItemID   *string `json:"item_id"`
	Label    string  `json:"label"`
	PosLabel string  `json:"pos_label"`
	NegLabel string  `json:"neg_label"`
}

func (in subjectInput) validate() string {
	if strings.TrimSpace(in.Label) == "" {
		return "Label is required"
	}
	if strings.TrimSpace(in.PosLabel) == "" || strings.TrimSpace(in.NegLabel) == "" {
		return "Positive and negative labels are required"
	}
	return ""
}

// GET /events/:id/subjects
func (h *handler) listSubjects(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessView, "view this event")
	if !ok {
		return
	}
	subjects, err := h.Subjects.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		internalError(c, err, "Could not fetch subjects. Try again later.")
		return
	}
	c.JSON(http.StatusOK, subjects)
}

// POST /events/:id/subjects
func (h *handler) createSubject(c *gin.Context) {
	ev, ok := h.eventFor(c, c.Param("id"), accessEdit, "add subjects to this event")
	if !ok {
		return
	}
	var in subjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	if msg := in.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	ctx := c.Request.Context()
	if in.ItemID != nil && *in.ItemID == "" {
		in.ItemID = nil
	}
	if in.ItemID != nil {
		it, err := h.Items.GetByID(ctx, *in.ItemID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			internalError(c, err, "Failed to create subject")
			return
		}
		if err != nil || it.EventID != ev.ID {
			badRequest(c, "The specified item does not belong to this event")
			return
		}
	}

	s := models.Subject{
		ID:        uuid.NewString(),
		EventID:   ev.ID,
		ItemID:    in.ItemID,
		Label:     strings.TrimSpace(in.Label),
		PosLabel:  strings.TrimSpace(in.PosLabel),
		NegLabel:  strings.TrimSpace(in.NegLabel),
		Metadata:  models.JSONMap{},
		CreatedAt: h.Clock.Now(),
	}
	if err := h.Subjects.Create(ctx, &s); err != nil {
		internalError(c, err, "Failed to create subject")
		return
	}

	h.Invalidator.PurgeEventPages(ctx, ev.Slug)
	c.JSON(http.StatusCreated, gin.H{"message": "Subject created!", "subject": s})
}

func (h *handler) subjectFor(c *gin.Context, action string) (models.Subject, models.Event, bool) {
	s, err := h.Subjects.GetByID(c.Request.Context(), c.Param("subjectId"))
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, "Subject not found")
		return models.Subject{}, models.Event{}, false
	}
	if err != nil {
		internalError(c, err, "Could not fetch subject. Try again later.")
		return models.Subject{}, models.Event{}, false
	}
	ev, ok := h.eventFor(c, s.EventID, accessEdit, action)
	return s, ev, ok
}

// PUT /subjects/:subjectId：只能改文字，不能換 item
func (h *handler) updateSubject(c *gin.Context) {
	s, ev, ok := h.subjectFor(c, "update subjects in this event")
	if !ok {
		return
	}
	var in subjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Could not parse request data.")
		return
	}
	// 預設題目沒有 label，只改兩個選項文字
	if s.IsDefault() {
		in.Label = s.Label
		if strings.TrimSpace(in.PosLabel) == "" || strings.TrimSpace(in.NegLabel) == "" {
			badRequest(c, "Positive and negative labels are required")
			return
		}
	} else if msg := in.validate(); msg != "" {
		badRequest(c, msg)
		return
	}
	s.Label = strings.TrimSpace(in.Label)
	s.PosLabel, s.NegLabel = strings.TrimSpace(in.PosLabel), strings.TrimSpace(in.NegLabel)

	if err := h.Subjects.Update(c.Request.Context(), &s); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "Subject not found")
			return
		}
		internalError(c, err, "Failed to update subject")
		return
	}

	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Subject updated!", "subject": s})
}

// DELETE /subjects/:subjectId
func (h *handler) deleteSubject(c *gin.Context) {
	s, ev, ok := h.subjectFor(c, "delete subjects in this event")
	if !ok {
		return
	}
	if s.ItemID != nil && s.IsDefault() {
		badRequest(c, "The default subject of an item cannot be deleted")
		return
	}
	if err := h.Subjects.Delete(c.Request.Context(), s.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		internalError(c, err, "Failed to delete subject")
		return
	}

	h.Invalidator.PurgeEventPages(c.Request.Context(), ev.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Subject deleted!"})
}
