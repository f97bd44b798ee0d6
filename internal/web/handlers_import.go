package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/logging"
	"github.com/JonMunkholm/stepimport/internal/notify"
	"github.com/JonMunkholm/stepimport/internal/source"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// UploadResponse describes a newly created import.
type UploadResponse struct {
	BatchID string   `json:"batch_id"`
	Entity  string   `json:"entity"`
	Columns []string `json:"columns"`
	Preview []string `json:"preview"`
	Rows    int      `json:"rows"`
	PerStep int      `json:"per_step"`
	Steps   int      `json:"steps"`
	Bytes   int64    `json:"bytes"`
}

// StatusResponse combines a stored import with its counters.
type StatusResponse struct {
	Import   source.Manifest `json:"import"`
	Progress core.Progress   `json:"progress"`
	Running  bool            `json:"step_running"`
}

// FinishResponse confirms a completed import.
type FinishResponse struct {
	BatchID  string `json:"batch_id"`
	Entity   string `json:"entity"`
	Finished bool   `json:"finished"`
}

// handleUpload stores a file for a new import and returns its columns and
// preview row. No counters are created until the first step runs.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.permission(ctx) {
		s.respondError(w, r, core.ErrUnauthorized)
		return
	}

	entity := chi.URLParam(r, "entity")
	if _, err := core.Lookup(entity); err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: %v", source.ErrFileTooLarge, err))
			return
		}
		s.respondErrorStatus(w, r, fmt.Errorf("invalid upload: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mapping, err := parseMapping(r.FormValue("mapping"))
	if err != nil {
		s.respondErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}

	perStep, err := s.parsePerStep(r.FormValue("per_step"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	ws := s.deps.Workspace
	batchID := source.NewBatchID()
	logger := logging.WithBatch(ctx, batchID, entity)

	size, err := ws.SaveUpload(batchID, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	src, err := ws.OpenSource(batchID)
	if err != nil {
		s.discard(ctx, batchID)
		s.respondErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}

	sess := core.Session{BatchID: batchID, Entity: entity, Source: src, PerStep: perStep, Mapping: mapping}
	preview, err := sess.PreviewRow()
	if err != nil {
		s.discard(ctx, batchID)
		s.respondErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}

	m := source.Manifest{
		BatchID:   batchID,
		Entity:    entity,
		FileName:  header.Filename,
		PerStep:   perStep,
		Mapping:   mapping,
		Rows:      src.RowCount(),
		CreatedBy: core.PrincipalFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if err := ws.SaveManifest(m); err != nil {
		s.discard(ctx, batchID)
		s.respondError(w, r, err)
		return
	}

	logger.Info("import uploaded",
		"file", header.Filename,
		"bytes", size,
		"rows", m.Rows,
		"per_step", perStep,
		"principal", m.CreatedBy,
	)

	writeJSON(w, http.StatusCreated, UploadResponse{
		BatchID: batchID,
		Entity:  entity,
		Columns: sess.Columns(),
		Preview: preview,
		Rows:    m.Rows,
		PerStep: perStep,
		Steps:   stepCount(m.Rows, perStep),
		Bytes:   size,
	})
}

// handleStatus returns the stored import and its counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	m, err := s.deps.Workspace.LoadManifest(batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.executor(nil, nil).Progress(r.Context(), batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Import:   m,
		Progress: p,
		Running:  s.deps.Guard != nil && s.deps.Guard.Busy(batchID),
	})
}

// handleStep runs one step of an import. An exhausted source is reported as
// a done result with status 200 so clients can stop polling.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.permission(ctx) {
		s.respondError(w, r, core.ErrUnauthorized)
		return
	}

	batchID := chi.URLParam(r, "batchID")
	rawStep := chi.URLParam(r, "step")
	step, err := strconv.Atoi(rawStep)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %q is not a step number", core.ErrInvalidStep, rawStep))
		return
	}

	m, err := s.deps.Workspace.LoadManifest(batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	def, err := core.Lookup(m.Entity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	release, err := s.acquire(ctx, batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer release()

	src, err := s.deps.Workspace.OpenSource(batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.Import.StepTimeout)
	defer cancel()

	res, err := s.executor(def.New(s.deps.DB), nil).RunStep(stepCtx, core.Session{
		BatchID:    batchID,
		Entity:     m.Entity,
		Source:     src,
		Step:       step,
		PerStep:    m.PerStep,
		Mapping:    m.Mapping,
		Permission: s.permission,
	})
	if err != nil && !errors.Is(err, core.ErrSourceExhausted) {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleFinish runs the completion handler and removes the stored upload.
// Finishing a batch whose upload is already gone clears any counters left
// behind and succeeds without notifying again, so a client may retry a
// finish whose response it lost.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.permission(ctx) {
		s.respondError(w, r, core.ErrUnauthorized)
		return
	}

	batchID := chi.URLParam(r, "batchID")
	if err := source.CheckBatchID(batchID); err != nil {
		s.respondError(w, r, err)
		return
	}

	release, err := s.acquire(ctx, batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer release()

	m, err := s.deps.Workspace.LoadManifest(batchID)
	if errors.Is(err, source.ErrSessionNotFound) {
		if err := s.executor(nil, nil).Purge(ctx, batchID); err != nil {
			s.respondError(w, r, err)
			return
		}
		logging.WithBatch(ctx, batchID, "").Info("finish repeated for a finished import")
		writeJSON(w, http.StatusOK, FinishResponse{BatchID: batchID, Finished: true})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	hook := notify.Hook(m.Entity, s.deps.Notifiers...)
	if err := s.executor(nil, hook).FinishEntity(ctx, batchID, m.Entity); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Workspace.Remove(batchID); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FinishResponse{BatchID: batchID, Entity: m.Entity, Finished: true})
}

// handleAbort drops the counters and stored upload of an import without
// running the completion handler.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.permission(ctx) {
		s.respondError(w, r, core.ErrUnauthorized)
		return
	}

	batchID := chi.URLParam(r, "batchID")
	if _, err := s.deps.Workspace.LoadManifest(batchID); err != nil {
		s.respondError(w, r, err)
		return
	}

	release, err := s.acquire(ctx, batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer release()

	if err := s.executor(nil, nil).Purge(ctx, batchID); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Workspace.Remove(batchID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("import aborted", "batch_id", batchID)
	w.WriteHeader(http.StatusNoContent)
}

// executor builds a per-request executor. importer and hook may be nil.
func (s *Server) executor(importer core.EntityImporter, hook core.CompletionHook) *core.Executor {
	opts := []core.ExecutorOption{core.WithRecorder(s.recorder)}
	if hook != nil {
		opts = append(opts, core.WithCompletionHook(hook))
	}
	return core.NewExecutor(s.deps.Progress, importer, opts...)
}

// acquire takes the batch's step slot when a guard is configured.
func (s *Server) acquire(ctx context.Context, batchID string) (func(), error) {
	if s.deps.Guard == nil {
		return func() {}, nil
	}
	return s.deps.Guard.Acquire(ctx, batchID)
}

// discard removes a half-created upload, logging failures.
func (s *Server) discard(ctx context.Context, batchID string) {
	if err := s.deps.Workspace.Remove(batchID); err != nil {
		logging.FromContext(ctx).Warn("discard upload", "batch_id", batchID, "error", err)
	}
}

// parsePerStep falls back to the configured step size when raw is empty.
func (s *Server) parsePerStep(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.cfg.Import.PerStep, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: per_step %q must be a positive integer", core.ErrInvalidStep, raw)
	}
	return n, nil
}

// parseMapping decodes the mapping form field. It accepts a list of
// {"column","field"} objects, which keeps order, or a plain
// {"Column":"field"} object. An empty value means no mapping.
func parseMapping(raw string) (core.FieldMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var mapping core.FieldMapping
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return nil, fmt.Errorf("invalid mapping: %w", err)
		}
	} else {
		var byColumn map[string]string
		if err := json.Unmarshal([]byte(raw), &byColumn); err != nil {
			return nil, fmt.Errorf("invalid mapping: %w", err)
		}
		mapping = core.MappingFromMap(byColumn)
	}

	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}
	return mapping, nil
}

// stepCount is the number of steps needed to cover rows.
func stepCount(rows, perStep int) int {
	if perStep <= 0 {
		return 0
	}
	return (rows + perStep - 1) / perStep
}
