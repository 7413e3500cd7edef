package handlers

import (
	"net/http"

	"rollcall/internal/models"
	"rollcall/internal/service"
)

type ActivityHandler struct {
	activityService *service.ActivityService
}

func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.activityService.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

// UpdateActivity applies a partial update; a schedule change replaces the
// upcoming event
func (h *ActivityHandler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	var patch models.ActivityPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	activity, err := h.activityService.UpdateActivity(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.activityService.DeleteActivity(r.Context(), r.PathValue("id")); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Activity was successfully deleted.")
}
