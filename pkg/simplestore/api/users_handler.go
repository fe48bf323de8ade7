package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-store/pkg/simplestore"
)

// UsersHandler serves the user directory
type UsersHandler struct {
	service simplestore.UserService
}

func NewUsersHandler(service simplestore.UserService) *UsersHandler {
	return &UsersHandler{service: service}
}

// Routes returns the router for users endpoints
func (h *UsersHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetUsers)
	r.Post("/", h.CreateUser)
	r.Put("/", h.UpdateUser)
	r.Delete("/", h.DeleteUser)
	return r
}

// UserListResponse is the body of a user listing
type UserListResponse struct {
	Users []*simplestore.User `json:"users"`
	Count int                 `json:"count"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Message string            `json:"message,omitempty"`
	User    *simplestore.User `json:"user"`
}

// DeleteUserResponse confirms a deletion
type DeleteUserResponse struct {
	Message   string `json:"message"`
	DeletedID int64  `json:"deletedId"`
}

// GetUsers returns one user when ?id= is present, otherwise all users
func (h *UsersHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("id") != "" {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		user, err := h.service.GetUser(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err, "Database query failed")
			return
		}
		render.JSON(w, r, UserResponse{User: user})
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Database query failed")
		return
	}
	render.JSON(w, r, UserListResponse{Users: users, Count: len(users)})
}

func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req simplestore.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UserResponse{Message: "User created successfully", User: user})
}

func (h *UsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req simplestore.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update user")
		return
	}

	render.JSON(w, r, UserResponse{Message: "User updated", User: user})
}

func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var id int64
	if r.URL.Query().Get("id") != "" {
		var ok bool
		if id, ok = parseID(w, r); !ok {
			return
		}
	}

	deletedID, err := h.service.DeleteUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete user")
		return
	}

	render.JSON(w, r, DeleteUserResponse{Message: "User deleted successfully", DeletedID: deletedID})
}

// parseID reads a positive integer ?id= and writes 400 otherwise
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid id"})
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeServiceError(w, r, asBodyError(err), "Invalid request body")
		return false
	}
	return true
}

// asBodyError keeps size limit errors intact and reports anything else
// as malformed JSON.
func asBodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return simplestore.NewValidationError("body", "Invalid JSON in request body")
}
