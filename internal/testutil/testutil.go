// Package testutil provides in-memory collaborators for tests only. Nothing
// outside _test.go files may import it.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KeremAR/Microservice/internal/identity"
	"github.com/KeremAR/Microservice/internal/profile"
	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/models"
)

// IdP is an identity.Provider over a map. Tokens are "token-<id>".
type IdP struct {
	mu         sync.Mutex
	principals map[string]*identity.Principal
	secrets    map[string]string
	next       int

	Deleted []string
	// CreateErr, when set, is returned by CreatePrincipal.
	CreateErr error
}

func NewIdP() *IdP {
	return &IdP{principals: map[string]*identity.Principal{}, secrets: map[string]string{}}
}

// Add registers a principal directly, bypassing signup.
func (f *IdP) Add(p identity.Principal, secret string) *identity.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.principals[p.ID] = &cp
	f.secrets[p.ID] = secret
	return &cp
}

func (f *IdP) CreatePrincipal(_ context.Context, in identity.NewPrincipal) (*identity.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	for _, p := range f.principals {
		if p.Email == in.Email {
			return nil, apperr.ErrIdentityEmailExists
		}
	}
	f.next++
	p := &identity.Principal{
		ID:          fmt.Sprintf("idp-%d", f.next),
		Email:       in.Email,
		DisplayName: in.DisplayName,
		Phone:       in.Phone,
		Providers:   []string{"password"},
	}
	f.principals[p.ID] = p
	f.secrets[p.ID] = in.Secret
	cp := *p
	return &cp, nil
}

func (f *IdP) DeletePrincipal(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.principals, id)
	delete(f.secrets, id)
	f.Deleted = append(f.Deleted, id)
	return nil
}

func (f *IdP) GetPrincipal(_ context.Context, id string) (*identity.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *IdP) GetPrincipalByEmail(_ context.Context, email string) (*identity.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *IdP) VerifyCredentials(ctx context.Context, email, secret string) (*identity.Principal, error) {
	p, err := f.GetPrincipalByEmail(ctx, email)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.secrets[p.ID] != secret {
		return nil, apperr.ErrUnauthorized
	}
	return p, nil
}

func (f *IdP) IssueToken(_ context.Context, id string) (string, error) {
	return "token-" + id, nil
}

func (f *IdP) VerifyToken(ctx context.Context, token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok || id == "" {
		return "", apperr.ErrUnauthorized
	}
	if _, err := f.GetPrincipal(ctx, id); err != nil {
		return "", apperr.ErrUnauthorized
	}
	return id, nil
}

// Store is an in-memory profile store that counts its calls.
type Store struct {
	mu   sync.Mutex
	rows map[string]*models.Profile

	FindCalls   int
	InsertCalls int
	// FindErr and InsertErr, when set, fail the respective operation.
	FindErr   error
	InsertErr error
}

func NewStore() *Store {
	return &Store{rows: map[string]*models.Profile{}}
}

// Put stores p as-is, including an empty role.
func (s *Store) Put(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.ID] = &p
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) Calls() (find, insert int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FindCalls, s.InsertCalls
}

func (s *Store) FindOne(_ context.Context, f profile.Filter) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindCalls++
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	for _, p := range s.rows {
		switch {
		case f.IdentityID != "":
			if p.IdentityID != f.IdentityID {
				continue
			}
		case f.ID != "":
			if p.ID != f.ID {
				continue
			}
		case f.Email != "":
			if p.Email != f.Email {
				continue
			}
		default:
			return nil, profile.ErrEmptyFilter
		}
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) Insert(_ context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	for _, row := range s.rows {
		if row.Email == p.Email || row.IdentityID == p.IdentityID {
			return nil, apperr.ErrProfileEmailExists
		}
	}
	cp := *p
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

// Published is one recorded Publish call.
type Published struct {
	Event      models.Event
	RoutingKey string
}

// Publisher records events instead of sending them.
type Publisher struct {
	mu     sync.Mutex
	events []Published
}

func (p *Publisher) Publish(_ context.Context, event models.Event, routingKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{Event: event, RoutingKey: routingKey})
}

func (p *Publisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.events...)
}

// Invalidator records invalidated patterns.
type Invalidator struct {
	mu       sync.Mutex
	Patterns []string
}

func (i *Invalidator) Invalidate(_ context.Context, pattern string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Patterns = append(i.Patterns, pattern)
	return 0
}
