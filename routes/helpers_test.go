package routes_test

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"flashvote/clock"
	"flashvote/middlewares"
	"flashvote/mocks"
	"flashvote/models"
	"flashvote/routes"
	"flashvote/utils"
	"flashvote/votes"
)

/* ---------- helpers ---------- */

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type serverDeps struct {
	s     *gin.Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *clock.Manual

	ur *mocks.MockUserRepo
	ar *mocks.MockAdminRepo
	er *mocks.MockEventRepo
	ir *mocks.MockItemRepo
	sr *mocks.MockSubjectRepo
	lr *mocks.MockLocationRepo
	vr *mocks.MockVoteRepo
}

// setupServerWithDeps builds a server on mocks; tweak may change the deps
// before the routes are registered.
func setupServerWithDeps(t *testing.T, tweak ...func(*routes.Deps)) serverDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := clock.NewManual(t0)
	lr := mocks.NewLocationRepo()
	vr := mocks.NewVoteRepo()
	vr.Locations = lr // 模擬 FK

	deps := serverDeps{
		mr: mr, rdb: rdb, clock: clk,
		ur: mocks.NewUserRepo(),
		ar: mocks.NewAdminRepo(),
		er: mocks.NewEventRepo(),
		ir: mocks.NewItemRepo(),
		sr: mocks.NewSubjectRepo(),
		lr: lr,
		vr: vr,
	}

	d := routes.Deps{
		Users:       deps.ur,
		Admins:      deps.ar,
		Events:      deps.er,
		Items:       deps.ir,
		Subjects:    deps.sr,
		Locations:   deps.lr,
		Votes:       deps.vr,
		Window:      votes.NewWindow(votes.NewMemoryStore(), votes.DefaultWindow, clk),
		Feed:        votes.NewFeed(rdb),
		Redis:       rdb,
		Invalidator: utils.NewCacheInvalidator(rdb),
		Clock:       clk,
		Heartbeat:   50 * time.Millisecond,
	}
	for _, fn := range tweak {
		fn(&d)
	}

	s := gin.New()
	s.Use(middlewares.ResponseCache(rdb, time.Minute))
	stop := routes.RegisterRoutes(s, d)
	t.Cleanup(stop)

	deps.s = s
	return deps
}

func authToken(t *testing.T, uid int64) string {
	t.Helper()
	token, err := utils.GenerateToken("tester@example.com", uid)
	if err != nil {
		t.Fatalf("gen token: %v", err)
	}
	return "Bearer " + token
}

func doReq(s *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	return body.Message
}

// seedEvent stores an event owned by owner with one item and its default subject.
func (d serverDeps) seedEvent(id string, owner int64) (models.Event, models.Item, models.Subject) {
	ev := models.Event{ID: id, Title: "Event " + id, Slug: "slug-" + id, OwnerID: owner, CreatedAt: t0}
	d.er.Items[ev.ID] = ev

	it := models.Item{ID: id + "-item", EventID: id, Slug: "pizza", Name: "Pizza", CreatedAt: t0}
	d.ir.Items[it.ID] = it

	s := models.NewDefaultSubject(id, it.ID)
	s.ID, s.CreatedAt = id+"-subject", t0
	d.sr.Subjects[s.ID] = s
	return ev, it, s
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
