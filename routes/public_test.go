package routes_test

import (
	"net/http"
	"testing"
	"time"

	"flashvote/models"
)

func TestPublic_EventAndItemPages(t *testing.T) {
	deps := setupServerWithDeps(t)
	ev, it, def := deps.seedEvent("e1", 1)
	deps.sr.Subjects["q"] = models.Subject{ID: "q", EventID: ev.ID, Label: "Overall?", PosLabel: "Yes", NegLabel: "No", CreatedAt: t0}
	deps.sr.Subjects["spicy"] = models.Subject{ID: "spicy", EventID: ev.ID, ItemID: &it.ID, Label: "Spicy?", PosLabel: "Yes", NegLabel: "No", CreatedAt: t0.Add(time.Second)}

	w := doReq(deps.s, http.MethodGet, "/e/"+ev.Slug, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	var page struct {
		Event    models.Event     `json:"event"`
		Items    []models.Item    `json:"items"`
		Subjects []models.Subject `json:"subjects"`
		Archived bool             `json:"archived"`
	}
	decode(t, w, &page)
	if page.Archived || len(page.Items) != 1 || len(page.Subjects) != 1 || page.Subjects[0].ID != "q" {
		t.Fatalf("event page = %+v", page)
	}

	w = doReq(deps.s, http.MethodGet, "/e/"+ev.Slug+"/"+it.Slug, "", "")
	var item struct {
		Item           models.Item      `json:"item"`
		DefaultSubject *models.Subject  `json:"default_subject"`
		Subjects       []models.Subject `json:"subjects"`
	}
	decode(t, w, &item)
	if item.DefaultSubject == nil || item.DefaultSubject.ID != def.ID || len(item.Subjects) != 1 || item.Subjects[0].ID != "spicy" {
		t.Fatalf("item page = %+v", item)
	}

	if w := doReq(deps.s, http.MethodGet, "/e/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown event: want 404, got %d", w.Code)
	}
	if w := doReq(deps.s, http.MethodGet, "/e/"+ev.Slug+"/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item: want 404, got %d", w.Code)
	}
}

func TestPublic_ArchivedEvent(t *testing.T) {
	deps := setupServerWithDeps(t)
	ev, _, _ := deps.seedEvent("e1", 1)
	ev.ArchivedAt = &t0
	deps.er.Items[ev.ID] = ev

	w := doReq(deps.s, http.MethodGet, "/e/"+ev.Slug, "", "")
	var page map[string]any
	decode(t, w, &page)
	if page["archived"] != true {
		t.Fatalf("page = %+v", page)
	}
	if _, ok := page["items"]; ok {
		t.Fatalf("archived page should not list items: %+v", page)
	}
}

// 公開頁快取：第二次命中，後台改動後失效
func TestPublic_CacheRoundtripInvalidation(t *testing.T) {
	deps := setupServerWithDeps(t)
	ev, _, _ := deps.seedEvent("e1", 1)
	path := "/e/" + ev.Slug

	if w := doReq(deps.s, http.MethodGet, path, "", ""); w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first: X-Cache=%q", w.Header().Get("X-Cache"))
	}
	if w := doReq(deps.s, http.MethodGet, path, "", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second: X-Cache=%q", w.Header().Get("X-Cache"))
	}

	w := doReq(deps.s, http.MethodPost, "/events/e1/items", `{"item_slug":"tacos","name":"Tacos"}`, authToken(t, 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: %d", w.Code)
	}

	w = doReq(deps.s, http.MethodGet, path, "", "")
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("after write: X-Cache=%q", w.Header().Get("X-Cache"))
	}
	var page struct {
		Items []models.Item `json:"items"`
	}
	decode(t, w, &page)
	if len(page.Items) != 2 {
		t.Fatalf("stale page: %+v", page.Items)
	}
}

func TestLocations_CacheInvalidatedOnUpdate(t *testing.T) {
	deps := setupServerWithDeps(t)
	deps.seedEvent("e1", 1)
	deps.lr.Locations["l1"] = models.Location{ID: "l1", EventID: "e1", Name: "Hall"}

	_ = doReq(deps.s, http.MethodGet, "/locations/l1", "", "")
	if w := doReq(deps.s, http.MethodGet, "/locations/l1", "", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT, got %q", w.Header().Get("X-Cache"))
	}

	_ = doReq(deps.s, http.MethodPut, "/locations/l1", `{"name":"Big Hall"}`, authToken(t, 1))

	w := doReq(deps.s, http.MethodGet, "/locations/l1", "", "")
	var l models.Location
	decode(t, w, &l)
	if w.Header().Get("X-Cache") != "MISS" || l.Name != "Big Hall" {
		t.Fatalf("stale location: cache=%q name=%q", w.Header().Get("X-Cache"), l.Name)
	}
}
