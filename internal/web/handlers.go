package web

import (
	"net/http"

	"github.com/JonMunkholm/stepimport/internal/core"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListImporters returns every registered importer.
func (s *Server) handleListImporters(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	infos := make([]core.ImporterInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, def.Info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleStepStatus returns the current state of the step guard.
// Used for monitoring and to check if the server can accept more steps.
func (s *Server) handleStepStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Guard == nil {
		writeJSON(w, http.StatusOK, core.StepGuardStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Guard.Status())
}
