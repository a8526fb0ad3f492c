package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/KeremAR/Microservice/internal/cache"
	"github.com/KeremAR/Microservice/internal/identity"
	"github.com/KeremAR/Microservice/internal/profile"
	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/models"
	"github.com/KeremAR/Microservice/pkg/rabbitmq"

	"github.com/google/uuid"
)

const passwordProvider = "password"

// LoginResult is a bearer token plus the caller's reconciled profile.
type LoginResult struct {
	Token   string
	Profile *View
}

// Login checks credentials at the identity provider, reconciles the profile,
// issues a token and announces the login.
func (r *Reconciler) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	principal, err := r.idp.VerifyCredentials(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	var view *View
	if row := r.find(ctx, principal.ID); row != nil {
		view = viewOf(row, true, nil)
	} else {
		view = r.writeBack(ctx, principal)
	}

	token, err := r.idp.IssueToken(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	event := models.NewUserLoggedIn(principal.ID, principal.Email, models.Metadata{
		"source":             "user-service",
		"operation":          "login",
		"postgres_available": view.Authoritative,
	})
	r.publisher.Publish(ctx, event, rabbitmq.UserRoutingKey)
	r.publisher.Publish(ctx, event, rabbitmq.LoadRoutingKey)

	r.cache.Invalidate(ctx, cache.PrincipalPattern(principal.ID))

	r.logger.Info("user logged in", "principal_id", principal.ID, "postgres_available", view.Authoritative)
	return &LoginResult{Token: token, Profile: view}, nil
}

// SignupInput is a validated signup request.
type SignupInput struct {
	Email        string
	Password     string
	Name         string
	Surname      string
	Role         string
	PhoneNumber  *string
	DepartmentID *int64
}

// SignupResult identifies the created identity and profile. Warning is set
// when the profile row could not be saved.
type SignupResult struct {
	UserID       string  `json:"user_id"`
	ProfileID    string  `json:"profile_id"`
	ProfileSaved bool    `json:"profile_saved"`
	Warning      *string `json:"warning"`
}

// Signup creates the identity first, then the profile row.
//
// A profile insert that fails for any reason other than a duplicate leaves
// the identity in place and reports ProfileSaved=false. A duplicate at
// insert time means a concurrent signup won the race; the just-created
// identity is deleted and the signup fails with ErrProfileEmailExists.
func (r *Reconciler) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	existing, err := r.store.FindOne(ctx, profile.Filter{Email: in.Email})
	switch {
	case err != nil:
		r.logger.Warn("profile email pre-check failed, continuing", "error", err)
	case existing != nil:
		return nil, apperr.ErrProfileEmailExists
	}

	profileID := uuid.NewString()
	principal, err := r.idp.CreatePrincipal(ctx, identity.NewPrincipal{
		ProfileID:   profileID,
		Email:       in.Email,
		Secret:      in.Password,
		DisplayName: strings.TrimSpace(in.Name + " " + in.Surname),
		Phone:       deref(in.PhoneNumber),
	})
	if err != nil {
		return nil, err
	}

	provider := passwordProvider
	_, err = r.store.Insert(ctx, &models.Profile{
		ID:           profileID,
		IdentityID:   principal.ID,
		Email:        in.Email,
		Name:         in.Name,
		Surname:      in.Surname,
		Role:         models.NormalizeRole(in.Role),
		PhoneNumber:  in.PhoneNumber,
		IsActive:     true,
		DepartmentID: in.DepartmentID,
		Provider:     &provider,
	})

	result := &SignupResult{UserID: principal.ID, ProfileID: profileID, ProfileSaved: err == nil}
	switch {
	case errors.Is(err, apperr.ErrProfileEmailExists):
		r.logger.Warn("profile email taken after identity creation, removing identity",
			"principal_id", principal.ID)
		if derr := r.idp.DeletePrincipal(ctx, principal.ID); derr != nil {
			r.logger.Error("failed to remove orphaned identity", "principal_id", principal.ID, "error", derr)
		}
		return nil, err
	case err != nil:
		r.logger.Error("profile insert failed after identity creation",
			"principal_id", principal.ID, "error", err)
		warning := warnProfileSave
		result.Warning = &warning
	}

	event := models.NewUserCreated(principal.ID, in.Email, models.Metadata{
		"source":             "user-service",
		"operation":          "signup",
		"postgres_available": result.ProfileSaved,
	})
	r.publisher.Publish(ctx, event, rabbitmq.UserRoutingKey)

	r.cache.Invalidate(ctx, cache.PrincipalPattern(principal.ID))
	r.cache.Invalidate(ctx, cache.PrincipalPattern(profileID))

	r.logger.Info("user signed up", "principal_id", principal.ID, "profile_saved", result.ProfileSaved)
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
