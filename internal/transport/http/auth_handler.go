package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "equiviz/internal/errors"
)

// AuthHandler serves registration, login, and logout.
type AuthHandler struct {
	service      AuthServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "auth_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the auth routes
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	return r
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Password string `json:"password" validate:"required,min=1"`
}

type registerResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decodeCredentials(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	user, err := h.service.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, registerResponse{UserID: user.ID, Username: user.Username})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decodeCredentials(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", result.UserID),
		slog.String("username", result.Username),
	)
	render.JSON(w, r, result)
}

// Logout handles POST /api/auth/logout. Tokens are stateless; the
// client discards its copy and this endpoint just acknowledges.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	var req credentialsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return nil, apierrors.BadRequest("Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, apierrors.BadRequest("Username and password are required")
	}
	return &req, nil
}
