package handlers

import (
	"net/http"

	"rollcall/internal/service"
)

// GroupHandler handles group lifecycle and membership requests
type GroupHandler struct {
	groupService *service.GroupService
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type memberRequest struct {
	UserID string `json:"userId"`
	Phone  string `json:"phone"`
	Name   string `json:"name"`
}

// CreateGroup creates a group with its activity and first event
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req service.CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	group, err := h.groupService.CreateGroupWithActivity(r.Context(), user.ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, group)
}

// GetGroup returns a populated group
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, group)
}

// LeaveGroup removes the requester from the group
func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if err := h.groupService.LeaveGroup(r.Context(), user.ID, r.PathValue("id")); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Successfully left group.")
}

// AddMember adds a registered user by phone, or a non-registered member
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	registered, err := h.groupService.AddMember(r.Context(), r.PathValue("id"), req.Phone, req.Name)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if registered {
		respondWithMessage(w, http.StatusOK, "Registered user added to group.")
		return
	}
	respondWithMessage(w, http.StatusOK, "Non-registered member added to group.")
}

// RemoveMember removes a registered member by user id or a guest by phone
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	registered, err := h.groupService.RemoveMember(r.Context(), r.PathValue("id"), req.UserID, req.Phone)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if registered {
		respondWithMessage(w, http.StatusOK, "Registered member removed.")
		return
	}
	respondWithMessage(w, http.StatusOK, "Non-registered member removed.")
}

// DeleteGroup dissolves the group along with its activity and events
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.groupService.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Group has been dissolved successfully.")
}
