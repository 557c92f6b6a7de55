package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ndtl/timereport/internal/rest"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	r.HandleFunc("/api/health", func(w http.ResponseWriter, req *http.Request) {
		rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Reports
	r.HandleFunc("/api/reports/program", deps.ReportHandler.ProgramReport).Methods("GET")
	r.HandleFunc("/api/reports/team", deps.ReportHandler.TeamOverview).Methods("GET")
	r.HandleFunc("/api/distribution", deps.ReportHandler.Distribution).Methods("GET")
	r.HandleFunc("/api/projects", deps.ReportHandler.ListProjects).Methods("GET")
	r.HandleFunc("/api/projects/{projectId:[0-9]+}/users", deps.ReportHandler.ListProjectUsers).Methods("GET")
	r.HandleFunc("/api/projects/{projectId:[0-9]+}/hours", deps.ReportHandler.ProjectHours).Methods("GET")

	// Teams
	r.HandleFunc("/api/teams", deps.TeamHandler.ListTeams).Methods("GET")
	r.HandleFunc("/api/teams", deps.TeamHandler.CreateTeam).Methods("POST")
	r.HandleFunc("/api/teams/{teamId:[0-9]+}", deps.TeamHandler.GetTeam).Methods("GET")
	r.HandleFunc("/api/teams/{teamId:[0-9]+}", deps.TeamHandler.DeleteTeam).Methods("DELETE")
	r.HandleFunc("/api/teams/{teamId:[0-9]+}/members", deps.TeamHandler.AddMember).Methods("POST")
	r.HandleFunc("/api/teams/{teamId:[0-9]+}/members/{memberId:[0-9]+}", deps.TeamHandler.RemoveMember).Methods("DELETE")

	// Delivery log
	r.HandleFunc("/api/deliveries", deps.DeliveryHandler.List).Methods("GET")
}
