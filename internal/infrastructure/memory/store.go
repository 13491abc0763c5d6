// Package memory provides in-memory repository implementations backed by
// maps. It is the default store for development and tests; the postgres
// package provides the durable alternative.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/session"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/user"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

// Store bundles every repository over one shared mutex.
type Store struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*document.Document
	entries   map[uuid.UUID]*ledger.Entry
	staff     map[uuid.UUID]*staff.Staff
	clients   map[uuid.UUID]*client.Client
	tasks     map[uuid.UUID]*worktask.Task
	users     map[uuid.UUID]*user.User
	sessions  map[string]*session.Session
}

func NewStore() *Store {
	return &Store{
		documents: make(map[uuid.UUID]*document.Document),
		entries:   make(map[uuid.UUID]*ledger.Entry),
		staff:     make(map[uuid.UUID]*staff.Staff),
		clients:   make(map[uuid.UUID]*client.Client),
		tasks:     make(map[uuid.UUID]*worktask.Task),
		users:     make(map[uuid.UUID]*user.User),
		sessions:  make(map[string]*session.Session),
	}
}

func (s *Store) Documents() document.Repository { return (*documentRepo)(s) }
func (s *Store) Ledger() ledger.Repository      { return (*ledgerRepo)(s) }
func (s *Store) Staff() staff.Repository        { return (*staffRepo)(s) }
func (s *Store) Clients() client.Repository     { return (*clientRepo)(s) }
func (s *Store) Tasks() worktask.Repository     { return (*taskRepo)(s) }
func (s *Store) Users() user.Repository         { return (*userRepo)(s) }
func (s *Store) Sessions() session.Repository   { return (*sessionRepo)(s) }

// PutDocument inserts or replaces a document. Intended for seeding and tests.
func (s *Store) PutDocument(d *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.documents[d.ID] = &cp
}

func (s *Store) PutEntry(e *ledger.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries[e.ID] = &cp
}

func (s *Store) PutStaff(m *staff.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.staff[m.ID] = &cp
}

func (s *Store) PutClient(c *client.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.clients[c.ID] = &cp
}

func (s *Store) PutTask(t *worktask.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
}

type documentRepo Store

func (r *documentRepo) GetByID(_ context.Context, id uuid.UUID) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *documentRepo) List(_ context.Context, clientID *uuid.UUID) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*document.Document
	for _, d := range r.documents {
		if clientID != nil && d.ClientID != *clientID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sortDocuments(out)
	return out, nil
}

func (r *documentRepo) ListByStatus(_ context.Context, status document.Status) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*document.Document
	for _, d := range r.documents {
		if d.Status != status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sortDocuments(out)
	return out, nil
}

func (r *documentRepo) ListForPeriod(_ context.Context, clientID *uuid.UUID, from, to time.Time) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*document.Document
	for _, d := range r.documents {
		if clientID != nil && d.ClientID != *clientID {
			continue
		}
		if d.DocumentDate.Before(from) || d.DocumentDate.After(to) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sortDocuments(out)
	return out, nil
}

func (r *documentRepo) Update(_ context.Context, d *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.documents[d.ID] = &cp
	return nil
}

func sortDocuments(docs []*document.Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].DocumentDate.Before(docs[j].DocumentDate)
	})
}

type ledgerRepo Store

func (r *ledgerRepo) CreateEntry(_ context.Context, e *ledger.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *ledgerRepo) ListEntries(_ context.Context, clientID *uuid.UUID, from, to time.Time) ([]*ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ledger.Entry
	for _, e := range r.entries {
		if clientID != nil && e.ClientID != *clientID {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sortEntries(out)
	return out, nil
}

func (r *ledgerRepo) ListUnreconciled(_ context.Context, clientID *uuid.UUID) ([]*ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ledger.Entry
	for _, e := range r.entries {
		if e.Reconciled {
			continue
		}
		if clientID != nil && e.ClientID != *clientID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sortEntries(out)
	return out, nil
}

func (r *ledgerRepo) MarkReconciled(_ context.Context, entryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[entryID]; ok {
		e.Reconciled = true
	}
	return nil
}

func sortEntries(entries []*ledger.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

type staffRepo Store

func (r *staffRepo) GetByID(_ context.Context, id uuid.UUID) (*staff.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.staff[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *staffRepo) List(_ context.Context) ([]*staff.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*staff.Staff, 0, len(r.staff))
	for _, m := range r.staff {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *staffRepo) Update(_ context.Context, m *staff.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.staff[m.ID] = &cp
	return nil
}

type clientRepo Store

func (r *clientRepo) GetByID(_ context.Context, id uuid.UUID) (*client.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *clientRepo) List(_ context.Context) ([]*client.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client.Client, 0, len(r.clients))
	for _, c := range r.clients {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *clientRepo) ListActive(ctx context.Context) ([]*client.Client, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

type taskRepo Store

func (r *taskRepo) GetByID(_ context.Context, id uuid.UUID) (*worktask.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) List(_ context.Context) ([]*worktask.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*worktask.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *taskRepo) ListUnassigned(ctx context.Context) ([]*worktask.Task, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Unassigned() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *taskRepo) Update(_ context.Context, t *worktask.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

type sessionRepo Store

func (r *sessionRepo) Create(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.TokenHash] = &cp
	return nil
}

func (r *sessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *sessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}

func (r *sessionRepo) Touch(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.ID == id {
			s.LastSeenAt = &now
			return nil
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for hash, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}
