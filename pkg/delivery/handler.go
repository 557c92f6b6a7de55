package delivery

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ndtl/timereport/internal/rest"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type RecordDTO struct {
	Id        string    `json:"id"`
	RunId     string    `json:"runId"`
	Report    string    `json:"report"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns the most recent deliveries, newest first. The optional limit
// query parameter is capped at 1000.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			rest.WriteError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = min(parsed, maxLimit)
	}

	records, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "failed to list deliveries", err)
		return
	}
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, RecordDTO{
			Id:        rec.Id.String(),
			RunId:     rec.RunId.String(),
			Report:    rec.Report,
			Recipient: rec.Recipient,
			Subject:   rec.Subject,
			Status:    string(rec.Status),
			Attempts:  rec.Attempts,
			Error:     rec.Error,
			CreatedAt: rec.CreatedAt,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}
