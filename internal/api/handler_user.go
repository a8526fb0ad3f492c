package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KeremAR/Microservice/internal/cache"
	"github.com/KeremAR/Microservice/internal/reconcile"
	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/middleware"
	"github.com/KeremAR/Microservice/pkg/models"

	"github.com/gin-gonic/gin"
)

const opProfile = "me"

// UserService is the reconciler as the handlers use it.
type UserService interface {
	Resolve(ctx context.Context, principalID string) (*reconcile.View, error)
	Login(ctx context.Context, email, secret string) (*reconcile.LoginResult, error)
	Signup(ctx context.Context, in reconcile.SignupInput) (*reconcile.SignupResult, error)
	Sync(ctx context.Context, principalID string) (*reconcile.View, error)
}

// ResponseCache is the read-through cache for profile reads.
type ResponseCache interface {
	Fetch(ctx context.Context, key string, ttl time.Duration, load cache.Loader) ([]byte, error)
}

// UserHandler handles auth and profile HTTP requests.
type UserHandler struct {
	Service UserService
	Cache   ResponseCache
	Logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler. responses may be nil to disable
// caching.
func NewUserHandler(svc UserService, responses ResponseCache, logger *slog.Logger) *UserHandler {
	return &UserHandler{Service: svc, Cache: responses, Logger: logger.With("component", "api")}
}

// SignupResponse is the 201 body of POST /auth/signup.
type SignupResponse struct {
	Status  string `json:"status" example:"success"`
	Code    int    `json:"code" example:"201"`
	Message string `json:"message"`
	reconcile.SignupResult
}

// LoginResponse is the 200 body of POST /auth/login.
type LoginResponse struct {
	Status  string          `json:"status" example:"success"`
	Code    int             `json:"code" example:"200"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    *reconcile.View `json:"user"`
}

// ProfileResponse is the 200 body of the profile endpoints.
type ProfileResponse struct {
	Status  string          `json:"status" example:"success"`
	Code    int             `json:"code" example:"200"`
	Message string          `json:"message,omitempty"`
	User    *reconcile.View `json:"user"`
}

// Signup godoc
// @Summary      Register a new user
// @Description  Creates the identity, then the profile row, and publishes user.created
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.SignupRequest  true  "Signup request"
// @Success      201      {object}  SignupResponse
// @Failure      400      {object}  apperr.Body
// @Failure      422      {object}  apperr.Body
// @Failure      500      {object}  apperr.Body
// @Router       /auth/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)

	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validationError(err))
		return
	}

	res, err := h.Service.Signup(c.Request.Context(), reconcile.SignupInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Surname:      req.Surname,
		Role:         req.Role,
		PhoneNumber:  req.PhoneNumber,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("signup completed", "user_id", res.UserID, "profile_saved", res.ProfileSaved, "correlation_id", correlationID)
	c.JSON(http.StatusCreated, SignupResponse{
		Status:       "success",
		Code:         http.StatusCreated,
		Message:      fmt.Sprintf("User created successfully with id %s", res.UserID),
		SignupResult: *res,
	})
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials, reconciles the profile and returns a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.LoginRequest  true  "Login request"
// @Success      200      {object}  LoginResponse
// @Failure      401      {object}  apperr.Body
// @Failure      422      {object}  apperr.Body
// @Router       /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validationError(err))
		return
	}

	res, err := h.Service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "User logged in successfully",
		Token:   res.Token,
		User:    res.Profile,
	})
}

// GetMe godoc
// @Summary      Get the caller's profile
// @Description  Returns the reconciled profile; cached per principal
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileResponse
// @Failure      401  {object}  apperr.Body
// @Failure      404  {object}  apperr.Body
// @Router       /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	load := func(ctx context.Context) ([]byte, bool, error) {
		view, err := h.Service.Resolve(ctx, principalID)
		if err != nil {
			return nil, false, err
		}
		body, err := json.Marshal(ProfileResponse{Status: "success", Code: http.StatusOK, User: view})
		// Degraded views are served but not memoized.
		return body, view.Authoritative, err
	}

	var (
		body []byte
		err  error
	)
	if h.Cache != nil {
		body, err = h.Cache.Fetch(c.Request.Context(), cache.Key(opProfile, principalID), 0, load)
	} else {
		body, _, err = load(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Sync godoc
// @Summary      Sync the caller's profile from the identity provider
// @Description  Creates the profile row if it is missing and drops cached reads
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileResponse
// @Failure      401  {object}  apperr.Body
// @Failure      404  {object}  apperr.Body
// @Router       /users/sync [post]
func (h *UserHandler) Sync(c *gin.Context) {
	view, err := h.Service.Sync(c.Request.Context(), middleware.GetPrincipalID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "User synchronized",
		User:    view,
	})
}

func (h *UserHandler) respondError(c *gin.Context, err error) {
	body := apperr.ToBody(err)
	if body.Code >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.FullPath(), "error", err,
			"correlation_id", middleware.GetCorrelationID(c))
	}
	c.AbortWithStatusJSON(body.Code, body)
}
