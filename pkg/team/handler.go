package team

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/ndtl/timereport/internal/rest"
	log "github.com/sirupsen/logrus"
)

type TeamDTO struct {
	Id        int       `json:"id"`
	ManagerId int       `json:"managerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	MemberIds []int     `json:"memberIds"`
}

type MemberDTO struct {
	MemberId int `json:"memberId"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing teams")
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "failed to list teams", err)
		return
	}
	dtos := make([]TeamDTO, 0, len(teams))
	for _, t := range teams {
		dtos = append(dtos, toDTO(t))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "teamId")
	if !ok {
		return
	}
	t, err := h.service.GetTeam(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(t))
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating team")
	var dto TeamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	created, err := h.service.CreateTeam(r.Context(), fromDTO(dto))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "teamId")
	if !ok {
		return
	}
	if err := h.service.DeleteTeam(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "teamId")
	if !ok {
		return
	}
	var dto MemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.MemberId <= 0 {
		rest.WriteError(w, http.StatusBadRequest, "memberId is required", err)
		return
	}
	t, err := h.service.AddMember(r.Context(), id, dto.MemberId)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(t))
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "teamId")
	if !ok {
		return
	}
	memberId, ok := pathInt(w, r, "memberId")
	if !ok {
		return
	}
	t, err := h.service.RemoveMember(r.Context(), id, memberId)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(t))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTeamNotFound), errors.Is(err, ErrMemberNotFound):
		rest.WriteError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, ErrMemberAlreadyExists):
		rest.WriteError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrInvalidTeam):
		rest.WriteError(w, http.StatusBadRequest, "invalid team", err)
	default:
		log.Errorf("team request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid "+name, err)
		return 0, false
	}
	return value, true
}

func toDTO(t Team) TeamDTO {
	memberIds := t.MemberIds
	if memberIds == nil {
		memberIds = []int{}
	}
	return TeamDTO{
		Id:        t.Id,
		ManagerId: t.ManagerId,
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		MemberIds: memberIds,
	}
}

func fromDTO(dto TeamDTO) Team {
	return Team{
		Id:        dto.Id,
		ManagerId: dto.ManagerId,
		Name:      dto.Name,
		MemberIds: dto.MemberIds,
	}
}
