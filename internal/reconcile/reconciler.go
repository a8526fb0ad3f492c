// Package reconcile produces one canonical profile view per principal out
// of the identity provider and the profile store, which may disagree.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KeremAR/Microservice/internal/cache"
	"github.com/KeremAR/Microservice/internal/identity"
	"github.com/KeremAR/Microservice/internal/profile"
	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/metrics"
	"github.com/KeremAR/Microservice/pkg/models"

	"github.com/google/uuid"
)

const (
	warnWriteBack   = "Profile store unavailable; profile built from identity provider data"
	warnProfileSave = "Account created but profile could not be saved; it will be created on first login"
)

// ProfileStore is the subset of profile.Store the reconciler needs.
type ProfileStore interface {
	FindOne(ctx context.Context, f profile.Filter) (*models.Profile, error)
	Insert(ctx context.Context, p *models.Profile) (*models.Profile, error)
}

// Publisher emits domain events without failing the caller.
type Publisher interface {
	Publish(ctx context.Context, event models.Event, routingKey string)
}

// Invalidator drops cached reads matching a key pattern.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string) int
}

// Lookup is one way of finding a principal's profile row.
type Lookup struct {
	Name   string
	Filter func(principalID string) profile.Filter
}

// DefaultLookups tries the identity id first, then the local id, since
// callers may pass either.
var DefaultLookups = []Lookup{
	{Name: "identity_id", Filter: func(id string) profile.Filter { return profile.Filter{IdentityID: id} }},
	{Name: "id", Filter: func(id string) profile.Filter { return profile.Filter{ID: id} }},
}

// View is the reconciled profile returned to HTTP callers.
type View struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Surname      string      `json:"surname"`
	Email        string      `json:"email"`
	Role         models.Role `json:"role"`
	PhoneNumber  *string     `json:"phone_number"`
	IsActive     bool        `json:"is_active"`
	DepartmentID *int64      `json:"department_id"`
	// Authoritative is true when the view came from a profile store row.
	Authoritative bool    `json:"postgres_available"`
	Warning       *string `json:"warning"`
}

// Reconciler is safe for concurrent use; it holds no per-request state.
type Reconciler struct {
	idp       identity.Provider
	store     ProfileStore
	publisher Publisher
	cache     Invalidator
	lookups   []Lookup
	logger    *slog.Logger
}

// New wires a Reconciler with the default lookup order.
func New(idp identity.Provider, store ProfileStore, publisher Publisher, cache Invalidator, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		idp:       idp,
		store:     store,
		publisher: publisher,
		cache:     cache,
		lookups:   DefaultLookups,
		logger:    logger.With("component", "reconciler"),
	}
}

// WithLookups replaces the lookup order.
func (r *Reconciler) WithLookups(lookups ...Lookup) *Reconciler {
	r.lookups = lookups
	return r
}

// Resolve returns the canonical view for principalID, which may be an
// identity id or a local profile id.
func (r *Reconciler) Resolve(ctx context.Context, principalID string) (*View, error) {
	if row := r.find(ctx, principalID); row != nil {
		metrics.ProfileResolutions.WithLabelValues("store_hit").Inc()
		return viewOf(row, true, nil), nil
	}

	principal, err := r.idp.GetPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.ProfileResolutions.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	return r.writeBack(ctx, principal), nil
}

// find walks the lookups in order. Store errors count as a miss for that
// lookup.
func (r *Reconciler) find(ctx context.Context, principalID string) *models.Profile {
	for _, l := range r.lookups {
		row, err := r.store.FindOne(ctx, l.Filter(principalID))
		if err != nil {
			r.logger.Warn("profile lookup failed, treating as miss",
				"lookup", l.Name, "principal_id", principalID, "error", err)
			continue
		}
		if row != nil {
			return row
		}
	}
	return nil
}

// writeBack synthesizes a profile from the principal and tries to store it.
// On failure the synthesized record is returned, flagged non-authoritative.
// Losing an insert race to a concurrent writer is not a failure: the
// winner's row is canonical.
func (r *Reconciler) writeBack(ctx context.Context, principal *identity.Principal) *View {
	synth := synthesize(principal)

	stored, err := r.store.Insert(ctx, synth)
	if errors.Is(err, apperr.ErrProfileEmailExists) {
		if row := r.find(ctx, principal.ID); row != nil {
			metrics.ProfileResolutions.WithLabelValues("store_hit").Inc()
			r.logger.Info("profile written concurrently, using stored row",
				"principal_id", principal.ID, "profile_id", row.ID)
			return viewOf(row, true, nil)
		}
	}
	if err != nil {
		metrics.ProfileResolutions.WithLabelValues("synthesized").Inc()
		r.logger.Warn("profile write-back failed",
			"principal_id", principal.ID, "error", err)
		warning := warnWriteBack
		return viewOf(synth, false, &warning)
	}

	metrics.ProfileResolutions.WithLabelValues("written_back").Inc()
	r.logger.Info("profile written back from identity", "principal_id", principal.ID, "profile_id", stored.ID)
	return viewOf(stored, true, nil)
}

func synthesize(p *identity.Principal) *models.Profile {
	prof := &models.Profile{
		ID:         uuid.NewString(),
		IdentityID: p.ID,
		Email:      p.Email,
		Name:       p.DisplayName,
		Role:       models.RoleUser,
		IsActive:   !p.Disabled,
	}
	if p.Phone != "" {
		phone := p.Phone
		prof.PhoneNumber = &phone
	}
	if label := p.ProviderLabel(); label != "" {
		prof.Provider = &label
	}
	return prof
}

// viewOf applies the field policy shared by every path: empty role is
// user, missing name is the email local part.
func viewOf(p *models.Profile, authoritative bool, warning *string) *View {
	name := p.Name
	if name == "" {
		name = models.DefaultName(p.Email)
	}
	return &View{
		ID:            p.ID,
		Name:          name,
		Surname:       p.Surname,
		Email:         p.Email,
		Role:          models.NormalizeRole(string(p.Role)),
		PhoneNumber:   p.PhoneNumber,
		IsActive:      p.IsActive,
		DepartmentID:  p.DepartmentID,
		Authoritative: authoritative,
		Warning:       warning,
	}
}

// Sync pulls the principal from the identity provider and makes sure a
// profile row exists for it, then drops the principal's cached reads.
func (r *Reconciler) Sync(ctx context.Context, principalID string) (*View, error) {
	principal, err := r.idp.GetPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	var view *View
	if row := r.find(ctx, principal.ID); row != nil {
		view = viewOf(row, true, nil)
	} else {
		view = r.writeBack(ctx, principal)
	}

	r.cache.Invalidate(ctx, cache.PrincipalPattern(principal.ID))
	return view, nil
}
