package reports

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/ndtl/timereport/internal/rest"
	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	log "github.com/sirupsen/logrus"
)

type ProgramReportDTO struct {
	Start      string             `json:"start"`
	End        string             `json:"end"`
	TotalHours float64            `json:"total_hours"`
	Skipped    int                `json:"skipped"`
	Children   []*aggregator.Node `json:"children"`
}

type WeekDTO struct {
	Number int    `json:"number"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Label  string `json:"label"`
}

type UserHoursDTO struct {
	Name  string    `json:"name"`
	Hours []float64 `json:"hours"`
	Total float64   `json:"total"`
}

type ProjectHoursDTO struct {
	Weeks []WeekDTO      `json:"weeks"`
	Users []UserHoursDTO `json:"users"`
}

type ProjectDTO struct {
	Id         int    `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

type UserDTO struct {
	Id    int    `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type DayHoursDTO struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

// HoursNodeDTO is a person, project or activity of the team overview. Days
// lists only the dates with hours.
type HoursNodeDTO struct {
	Label      string         `json:"label"`
	TotalHours float64        `json:"total_hours"`
	Days       []DayHoursDTO  `json:"days"`
	Children   []HoursNodeDTO `json:"children,omitempty"`
}

type TeamHoursDTO struct {
	Id         int            `json:"id"`
	Name       string         `json:"name"`
	Manager    string         `json:"manager"`
	TotalHours float64        `json:"total_hours"`
	People     []HoursNodeDTO `json:"people"`
}

type TeamOverviewDTO struct {
	Start string         `json:"start"`
	End   string         `json:"end"`
	Teams []TeamHoursDTO `json:"teams"`
}

type DistributionItemDTO struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type DistributionDTO struct {
	Entries []DistributionItemDTO `json:"entries"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ProgramReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	log.Debugf("Program report for %s..%s", from.Format(period.DateLayout), to.Format(period.DateLayout))

	tree, err := h.service.ProgramReport(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.Header.Get("Accept") == "text/csv" {
		title := fmt.Sprintf("Program report %s - %s", from.Format(period.DateLayout), to.Format(period.DateLayout))
		out, err := render.CSV(tree, title)
		if err != nil {
			rest.WriteError(w, http.StatusInternalServerError, "failed to render csv", err)
			return
		}
		w.Header().Set("Content-Type", render.CSVContentType)
		if _, err := w.Write([]byte(out)); err != nil {
			log.Errorf("failed to write csv response: %v", err)
		}
		return
	}

	children := tree.Root.Children
	if children == nil {
		children = []*aggregator.Node{}
	}
	rest.WriteJSON(w, http.StatusOK, ProgramReportDTO{
		Start:      from.Format(period.DateLayout),
		End:        to.Format(period.DateLayout),
		TotalHours: tree.TotalHours(),
		Skipped:    tree.Skipped,
		Children:   children,
	})
}

func (h *Handler) TeamOverview(w http.ResponseWriter, r *http.Request) {
	from, to, ok := optionalDateRange(w, r)
	if !ok {
		return
	}
	from, to = h.service.OverviewRange(from, to)

	teams, days, err := h.service.TeamOverview(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	response := TeamOverviewDTO{
		Start: from.Format(period.DateLayout),
		End:   to.Format(period.DateLayout),
		Teams: make([]TeamHoursDTO, 0, len(teams)),
	}
	for _, t := range teams {
		response.Teams = append(response.Teams, TeamHoursDTO{
			Id:         t.Team.Id,
			Name:       t.Team.Name,
			Manager:    t.Manager,
			TotalHours: t.Tree.TotalHours(),
			People:     hoursNodes(t.Tree.Root.Children, days, ""),
		})
	}
	rest.WriteJSON(w, http.StatusOK, response)
}

// hoursNodes converts tree nodes to DTOs. An activity labelled like its
// project repeats the project row and is left out.
func hoursNodes(nodes []*aggregator.Node, days []period.Week, parent string) []HoursNodeDTO {
	dtos := make([]HoursNodeDTO, 0, len(nodes))
	for _, n := range nodes {
		if n.Level == aggregator.LevelActivity && n.Label == parent {
			continue
		}
		dto := HoursNodeDTO{Label: n.Label, TotalHours: n.TotalHours, Days: []DayHoursDTO{}}
		for _, d := range days {
			if hours := n.WeekHours(d.Number); hours != 0 {
				dto.Days = append(dto.Days, DayHoursDTO{Date: d.Start.Format(period.DateLayout), Hours: hours})
			}
		}
		if len(n.Children) > 0 {
			dto.Children = hoursNodes(n.Children, days, n.Label)
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	kind, err := redmine.ParseDistributionKind(r.URL.Query().Get("type"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid type", err)
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	items, err := h.service.Distribution(r.Context(), kind, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	response := DistributionDTO{Entries: make([]DistributionItemDTO, 0, len(items))}
	for _, item := range items {
		response.Entries = append(response.Entries, DistributionItemDTO{Id: item.Id, Name: item.Name, Active: item.Active})
	}
	rest.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, ProjectDTO{Id: p.Id, Identifier: p.Identifier, Name: p.Name})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListProjectUsers(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid projectId", err)
		return
	}
	users, err := h.service.ListProjectUsers(r.Context(), projectId)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, UserDTO{Id: u.Id, Login: u.Login, Name: u.FullName()})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ProjectHours(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid projectId", err)
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	var userIds []int
	for _, raw := range r.URL.Query()["user"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "invalid user", err)
			return
		}
		userIds = append(userIds, id)
	}

	weeks, series, err := h.service.ProjectHours(r.Context(), projectId, userIds, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	response := ProjectHoursDTO{
		Weeks: make([]WeekDTO, 0, len(weeks)),
		Users: make([]UserHoursDTO, 0, len(series)),
	}
	for _, week := range weeks {
		response.Weeks = append(response.Weeks, WeekDTO{
			Number: week.Number,
			Start:  week.Start.Format(period.DateLayout),
			End:    week.End.Format(period.DateLayout),
			Label:  week.Label(),
		})
	}
	for _, s := range series {
		response.Users = append(response.Users, UserHoursDTO{Name: s.Name, Hours: s.Hours, Total: s.Total})
	}
	rest.WriteJSON(w, http.StatusOK, response)
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := period.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid start", err)
		return time.Time{}, time.Time{}, false
	}
	to, err := period.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid end", err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// optionalDateRange is dateRange with both dates optional; a missing date is
// returned as the zero time.
func optionalDateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var dates [2]time.Time
	for i, name := range []string{"start", "end"} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		date, err := period.ParseDate(raw)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "invalid "+name, err)
			return time.Time{}, time.Time{}, false
		}
		dates[i] = date
	}
	return dates[0], dates[1], true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, period.ErrInvalidRange), errors.Is(err, period.ErrInvalidDateFormat):
		rest.WriteError(w, http.StatusBadRequest, "invalid date range", err)
	case errors.Is(err, redmine.ErrProjectNotFound):
		rest.WriteError(w, http.StatusNotFound, "project not found", err)
	default:
		log.Errorf("report request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal error", err)
	}
}
