package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"rollcall/internal/metrics"
	"rollcall/internal/models"
	"rollcall/internal/service"
)

// EventHandler handles upcoming events and attendance answers
type EventHandler struct {
	eventService *service.EventService
	metrics      *metrics.Metrics
}

// NewEventHandler creates a new event handler. m may be nil.
func NewEventHandler(eventService *service.EventService, m *metrics.Metrics) *EventHandler {
	return &EventHandler{eventService: eventService, metrics: m}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpcomingEvent returns the group's next event with responders populated
func (h *EventHandler) UpcomingEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.UpcomingEvent(r.Context(), r.PathValue("groupId"))
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			respondWithError(w, http.StatusNotFound, KindNotFound, "No upcoming event found for this group.", "", nil)
			return
		}
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// UpdateAttendance records the requester's in/out/undecided answer
func (h *EventHandler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status := models.AttendanceStatus(req.Status)
	if _, err := h.eventService.UpdateAttendance(r.Context(), user.ID, r.PathValue("id"), status); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordAttendance(req.Status)
	}
	respondWithMessage(w, http.StatusOK, fmt.Sprintf("Successfully updated status to '%s'.", req.Status))
}
