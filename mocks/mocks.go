// Package mocks holds in-memory repositories for tests and local runs.
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"flashvote/models"
)

type MockUserRepo struct {
	mu    sync.Mutex
	Users map[string]models.User // key 是 email
}

func NewUserRepo() *MockUserRepo { return &MockUserRepo{Users: map[string]models.User{}} }

func (m *MockUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[u.Email]; ok {
		return models.ErrDuplicate
	}
	u.ID = int64(len(m.Users) + 1)
	m.Users[u.Email] = *u
	return nil
}

// ValidateCredentials compares plain text; hashing is covered by the SQL repo.
func (m *MockUserRepo) ValidateCredentials(_ context.Context, email, plain string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[email]
	if !ok || u.Password != plain {
		return models.User{}, models.ErrInvalidCredentials
	}
	return u, nil
}

func (m *MockUserRepo) GetByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

type MockEventRepo struct {
	mu    sync.Mutex
	Items map[string]models.Event
}

func NewEventRepo(events ...models.Event) *MockEventRepo {
	m := &MockEventRepo{Items: map[string]models.Event{}}
	for _, e := range events {
		m.Items[e.ID] = e
	}
	return m
}

func (m *MockEventRepo) sorted(keep func(models.Event) bool) []models.Event {
	out := []models.Event{}
	for _, e := range m.Items {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockEventRepo) ListByOwner(_ context.Context, ownerID int64) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e models.Event) bool { return e.OwnerID == ownerID }), nil
}

func (m *MockEventRepo) ListByIDs(_ context.Context, ids []string) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(func(e models.Event) bool { return want[e.ID] }), nil
}

func (m *MockEventRepo) GetByID(_ context.Context, id string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

func (m *MockEventRepo) GetBySlug(_ context.Context, slug string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Items {
		if e.Slug == slug {
			return e, nil
		}
	}
	return models.Event{}, models.ErrNotFound
}

func (m *MockEventRepo) slugTaken(slug, exceptID string) bool {
	for _, e := range m.Items {
		if e.Slug == slug && e.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MockEventRepo) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[e.ID]; ok || m.slugTaken(e.Slug, "") {
		return models.ErrDuplicate
	}
	m.Items[e.ID] = *e
	return nil
}

func (m *MockEventRepo) Update(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Items[e.ID]
	if !ok {
		return models.ErrNotFound
	}
	if m.slugTaken(e.Slug, e.ID) {
		return models.ErrDuplicate
	}
	cur.Title, cur.Slug, cur.Metadata, cur.UpdatedAt = e.Title, e.Slug, e.Metadata, e.UpdatedAt
	m.Items[e.ID] = cur
	return nil
}

func (m *MockEventRepo) SetArchived(_ context.Context, id string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Items[id]
	if !ok {
		return models.ErrNotFound
	}
	cur.ArchivedAt = at
	m.Items[id] = cur
	return nil
}

func (m *MockEventRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Items, id)
	return nil
}

type MockAdminRepo struct {
	mu     sync.Mutex
	Grants []models.Admin
}

func NewAdminRepo(grants ...models.Admin) *MockAdminRepo { return &MockAdminRepo{Grants: grants} }

func (m *MockAdminRepo) Grant(_ context.Context, a *models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.Grants {
		if g.EventID == a.EventID && g.UserID == a.UserID {
			m.Grants[i].Role = a.Role
			a.CreatedAt = g.CreatedAt
			return nil
		}
	}
	a.CreatedAt = time.Now().UTC()
	m.Grants = append(m.Grants, *a)
	return nil
}

func (m *MockAdminRepo) Revoke(_ context.Context, eventID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.Grants {
		if g.EventID == eventID && g.UserID == userID {
			m.Grants = append(m.Grants[:i], m.Grants[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MockAdminRepo) Role(_ context.Context, eventID string, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.Grants {
		if g.EventID == eventID && g.UserID == userID {
			return g.Role, nil
		}
	}
	return "", models.ErrNotFound
}

func (m *MockAdminRepo) filter(keep func(models.Admin) bool) []models.Admin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Admin{}
	for _, g := range m.Grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}

func (m *MockAdminRepo) ListByEvent(_ context.Context, eventID string) ([]models.Admin, error) {
	return m.filter(func(a models.Admin) bool { return a.EventID == eventID }), nil
}

func (m *MockAdminRepo) ListByUser(_ context.Context, userID int64) ([]models.Admin, error) {
	return m.filter(func(a models.Admin) bool { return a.UserID == userID }), nil
}

func (m *MockAdminRepo) DeleteByEvent(_ context.Context, eventID string) error {
	keep := m.filter(func(a models.Admin) bool { return a.EventID != eventID })
	m.mu.Lock()
	m.Grants = keep
	m.mu.Unlock()
	return nil
}

type MockItemRepo struct {
	mu    sync.Mutex
	Items map[string]models.Item
}

func NewItemRepo(items ...models.Item) *MockItemRepo {
	m := &MockItemRepo{Items: map[string]models.Item{}}
	for _, it := range items {
		m.Items[it.ID] = it
	}
	return m
}

func (m *MockItemRepo) ListByEvent(_ context.Context, eventID string) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Item{}
	for _, it := range m.Items {
		if it.EventID == eventID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockItemRepo) GetByID(_ context.Context, id string) (models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.Items[id]
	if !ok {
		return models.Item{}, models.ErrNotFound
	}
	return it, nil
}

func (m *MockItemRepo) GetBySlug(_ context.Context, eventID, slug string) (models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.Items {
		if it.EventID == eventID && it.Slug == slug {
			return it, nil
		}
	}
	return models.Item{}, models.ErrNotFound
}

func (m *MockItemRepo) slugTaken(eventID, slug, exceptID string) bool {
	for _, it := range m.Items {
		if it.EventID == eventID && it.Slug == slug && it.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MockItemRepo) Create(_ context.Context, it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(it.EventID, it.Slug, "") {
		return models.ErrDuplicate
	}
	m.Items[it.ID] = *it
	return nil
}

func (m *MockItemRepo) Update(_ context.Context, it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Items[it.ID]
	if !ok {
		return models.ErrNotFound
	}
	if m.slugTaken(cur.EventID, it.Slug, it.ID) {
		return models.ErrDuplicate
	}
	it.EventID, it.CreatedAt = cur.EventID, cur.CreatedAt
	m.Items[it.ID] = *it
	return nil
}

func (m *MockItemRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Items, id)
	return nil
}

type MockSubjectRepo struct {
	mu       sync.Mutex
	Subjects map[string]models.Subject
}

func NewSubjectRepo(subjects ...models.Subject) *MockSubjectRepo {
	m := &MockSubjectRepo{Subjects: map[string]models.Subject{}}
	for _, s := range subjects {
		m.Subjects[s.ID] = s
	}
	return m
}

func (m *MockSubjectRepo) filter(keep func(models.Subject) bool) []models.Subject {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Subject{}
	for _, s := range m.Subjects {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MockSubjectRepo) ListByEvent(_ context.Context, eventID string) ([]models.Subject, error) {
	return m.filter(func(s models.Subject) bool { return s.EventID == eventID }), nil
}

func (m *MockSubjectRepo) ListByItem(_ context.Context, itemID string) ([]models.Subject, error) {
	return m.filter(func(s models.Subject) bool { return s.ItemID != nil && *s.ItemID == itemID }), nil
}

func (m *MockSubjectRepo) GetByID(_ context.Context, id string) (models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subjects[id]
	if !ok {
		return models.Subject{}, models.ErrNotFound
	}
	return s, nil
}

func (m *MockSubjectRepo) Create(_ context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 與 idx_subjects_default_per_item 相同的限制
	if s.ItemID != nil && isDefault(*s) {
		for _, cur := range m.Subjects {
			if cur.ItemID != nil && *cur.ItemID == *s.ItemID && isDefault(cur) {
				return models.ErrDuplicate
			}
		}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.Subjects[s.ID] = *s
	return nil
}

func isDefault(s models.Subject) bool {
	v, ok := s.Metadata["is_default"].(bool)
	return ok && v
}

func (m *MockSubjectRepo) Update(_ context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Subjects[s.ID]
	if !ok {
		return models.ErrNotFound
	}
	cur.Label, cur.PosLabel, cur.NegLabel = s.Label, s.PosLabel, s.NegLabel
	m.Subjects[s.ID] = cur
	*s = cur
	return nil
}

func (m *MockSubjectRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Subjects[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Subjects, id)
	return nil
}

type MockLocationRepo struct {
	mu        sync.Mutex
	Locations map[string]models.Location
}

func NewLocationRepo(locs ...models.Location) *MockLocationRepo {
	m := &MockLocationRepo{Locations: map[string]models.Location{}}
	for _, l := range locs {
		m.Locations[l.ID] = l
	}
	return m
}

func (m *MockLocationRepo) filter(keep func(models.Location) bool) []models.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Location{}
	for _, l := range m.Locations {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *MockLocationRepo) ListByEvent(_ context.Context, eventID string) ([]models.Location, error) {
	return m.filter(func(l models.Location) bool { return l.EventID == eventID }), nil
}

func (m *MockLocationRepo) GetByID(_ context.Context, id string) (models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.Locations[id]
	if !ok {
		return models.Location{}, models.ErrNotFound
	}
	return l, nil
}

func (m *MockLocationRepo) SearchByZip(_ context.Context, prefix, eventID string) ([]models.Location, error) {
	return m.filter(func(l models.Location) bool {
		if eventID != "" && l.EventID != eventID {
			return false
		}
		return l.ZipCode != nil && strings.HasPrefix(strings.ToLower(*l.ZipCode), strings.ToLower(prefix))
	}), nil
}

func (m *MockLocationRepo) Create(_ context.Context, l *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locations[l.ID] = *l
	return nil
}

func (m *MockLocationRepo) Update(_ context.Context, l *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Locations[l.ID]
	if !ok {
		return models.ErrNotFound
	}
	l.EventID, l.CreatedAt = cur.EventID, cur.CreatedAt
	m.Locations[l.ID] = *l
	return nil
}

func (m *MockLocationRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Locations[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Locations, id)
	return nil
}

type MockVoteRepo struct {
	mu    sync.Mutex
	Votes []models.Vote
	// Locations, when set, makes Insert reject unknown location ids like the FK does.
	Locations *MockLocationRepo
}

func NewVoteRepo() *MockVoteRepo { return &MockVoteRepo{} }

func (m *MockVoteRepo) Insert(ctx context.Context, v *models.Vote) error {
	if m.Locations != nil && v.LocationID != nil {
		if _, err := m.Locations.GetByID(ctx, *v.LocationID); err != nil {
			return models.ErrInvalidReference
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	m.Votes = append(m.Votes, *v)
	return nil
}

func locationMatches(v models.Vote, locationID string) bool {
	return locationID == "" || (v.LocationID != nil && *v.LocationID == locationID)
}

func (m *MockVoteRepo) Choices(_ context.Context, subjectIDs []string, locationID string) ([]models.VoteChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range subjectIDs {
		want[id] = true
	}
	out := []models.VoteChoice{}
	for _, v := range m.Votes {
		if want[v.SubjectID] && locationMatches(v, locationID) {
			out = append(out, models.VoteChoice{SubjectID: v.SubjectID, Choice: v.Choice})
		}
	}
	return out, nil
}

func (m *MockVoteRepo) Since(_ context.Context, subjectID, locationID string, since time.Time) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Vote{}
	for _, v := range m.Votes {
		if v.SubjectID == subjectID && locationMatches(v, locationID) && !v.CreatedAt.Before(since) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Count returns how many votes were stored.
func (m *MockVoteRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Votes)
}
