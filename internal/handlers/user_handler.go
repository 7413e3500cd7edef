package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"rollcall/internal/identity"
	"rollcall/internal/models"
	"rollcall/internal/service"
)

// UserHandler handles profile requests and identity provider sync
type UserHandler struct {
	userService *service.UserService
	webhook     *identity.WebhookVerifier
}

// NewUserHandler creates a new user handler. A disabled webhook verifier
// accepts unsigned sync deliveries.
func NewUserHandler(userService *service.UserService, webhook *identity.WebhookVerifier) *UserHandler {
	return &UserHandler{userService: userService, webhook: webhook}
}

type syncResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user,omitempty"`
}

// GetMe returns the authenticated user
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	respondWithJSON(w, http.StatusOK, user)
}

// GetMyGroups lists the groups the authenticated user belongs to
func (h *UserHandler) GetMyGroups(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	groups, err := h.userService.GetUserGroups(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, groups)
}

// UpdateProfile changes the authenticated user's name or bio
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var patch models.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, patch)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// GetPublicProfile returns the public fields of any user
func (h *UserHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetPublicProfile(r.Context(), r.PathValue("userId"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// SyncUser receives the identity provider's user.created webhook
func (h *UserHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, KindInvalidInput, "Could not read webhook body", "", nil)
		return
	}

	if h.webhook != nil && h.webhook.Enabled() {
		if err := h.webhook.Verify(r.Header, body); err != nil {
			slog.Warn("Rejected webhook delivery", "error", err, "svix_id", r.Header.Get("svix-id"))
			respondWithError(w, http.StatusUnauthorized, KindUnauthorized, "Invalid webhook signature", "", nil)
			return
		}
	}

	event, err := identity.ParseWebhookEvent(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, KindInvalidInput, ErrInvalidJSON, "", nil)
		return
	}

	data := event.Data
	in := service.SyncUserInput{
		ExternalID:     data.ID,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Phone:          data.Phone(),
		Email:          data.Email(),
		ProfilePicture: data.ImageURL,
	}
	if data.Username != nil {
		in.Username = *data.Username
	}

	user, created, err := h.userService.SyncUser(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if !created {
		respondWithJSON(w, http.StatusOK, syncResponse{Message: "User already exists."})
		return
	}
	respondWithJSON(w, http.StatusCreated, syncResponse{Message: "User synced successfully.", User: user})
}
