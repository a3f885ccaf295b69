package user

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/filegate/service/internal/response"
)

// Handler holds HTTP handlers for user endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email"    example:"alice@example.com"`
}

// List godoc
//
//	@Summary		List users
//	@Description	Returns every registered user.
//	@Tags			users
//	@Produce		json
//	@Success		200	{array}		User
//	@Failure		500	{object}	map[string]string
//	@Router			/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("list users failed: %v", err)
		response.InternalError(w)
		return
	}
	response.OK(w, users)
}

// Create godoc
//
//	@Summary		Create user
//	@Description	Registers a new user with a username and email.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			user	body		createRequest	true	"user to create"
//	@Success		201		{object}	User
//	@Failure		400		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/users [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" {
		response.BadRequest(w, "username is required")
		return
	}
	if req.Email == "" {
		response.BadRequest(w, "email is required")
		return
	}

	u, err := h.svc.Create(r.Context(), req.Username, req.Email)
	if err != nil {
		log.Printf("create user failed: %v", err)
		response.InternalError(w)
		return
	}
	response.Created(w, u)
}
