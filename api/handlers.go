/*
handlers.go - HTTP API handlers for the obligation simulator

PURPOSE:
  Exposes the simulation engine via REST API. Handles HTTP request/response,
  document decoding, and delegates to the factory, engine and store.

ENDPOINTS:
  Simulations:
    POST   /api/simulations                 Run a scenario document, store the run

  Runs:
    GET    /api/runs                        List runs (?scenario_id=, ?limit=)
    GET    /api/runs/{id}                   Run detail with decisions and violations
    GET    /api/runs/{id}/violations        Violations (?kind=card_limit|overdue)
    GET    /api/runs/{id}/tables/{table}    One output table as CSV

  Scenarios:
    GET    /api/scenarios                   List saved scenarios
    POST   /api/scenarios                   Save a scenario document
    GET    /api/scenarios/{id}              Scenario with its document
    POST   /api/scenarios/{id}/run          Run a saved scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Run and scenario persistence
  - Factory: Document to Inputs conversion
  - Engine: The simulation itself

REQUEST FLOW:
  1. Decode the document (JSON, or YAML when Content-Type says so)
  2. Convert to inputs; the engine validates before simulating
  3. Persist the run
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed documents, configuration errors
  - 404: Run, scenario or table not found
  - 409: Duplicate run ID
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/obligation-engine/factory"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
	"github.com/warp/obligation-engine/report"
)

// maxDocumentBytes caps request bodies.
const maxDocumentBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   finance.Store
	Factory *factory.ScenarioFactory
	Engine  *finance.Engine
	Log     logrus.FieldLogger
}

// NewHandler creates a new handler with the given store. A nil logger
// discards output.
func NewHandler(store finance.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Handler{
		Store:   store,
		Factory: factory.NewScenarioFactory(),
		Engine:  finance.NewEngine(log),
		Log:     log,
	}
}

// RunScenario simulates a document and stores the run. Shared by the
// handlers and the scheduler.
func (h *Handler) RunScenario(ctx context.Context, scenarioID string, sj *factory.ScenarioJSON) (*finance.Run, error) {
	in, err := h.Factory.ToInputs(sj)
	if err != nil {
		return nil, err
	}
	result, err := h.Engine.Run(in)
	if err != nil {
		return nil, err
	}
	run := finance.NewRun(scenarioID, sj.Name, result)
	if err := h.Store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	h.Log.WithFields(logrus.Fields{
		"run":        run.ID,
		"scenario":   scenarioID,
		"violations": len(result.Violations),
	}).Info("run stored")
	return run, nil
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

// CreateSimulation runs the posted scenario document.
func (h *Handler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	sj, err := h.decodeScenario(r)
	if err != nil {
		writeError(w, statusFor(err), "Invalid scenario", err)
		return
	}

	run, err := h.RunScenario(r.Context(), "", sj)
	if err != nil {
		writeError(w, statusFor(err), "Simulation failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRunDetailDTO(run, report.TableNames))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns run summaries, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := finance.RunFilter{ScenarioID: r.URL.Query().Get("scenario_id")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}

	runs, err := h.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, info := range runs {
		dtos[i] = toRunDTO(info)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its decisions.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Run not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDetailDTO(run, report.TableNames))
}

// GetRunViolations returns a run's violations, optionally filtered by kind.
func (h *Handler) GetRunViolations(w http.ResponseWriter, r *http.Request) {
	kind := finance.ViolationKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", finance.ViolationCardLimit, finance.ViolationOverdue:
	default:
		writeError(w, http.StatusBadRequest, "Invalid violation kind", fmt.Errorf("unknown kind %q", kind))
		return
	}

	violations, err := h.Store.Violations(r.Context(), chi.URLParam(r, "id"), kind)
	if err != nil {
		writeError(w, statusFor(err), "Failed to load violations", err)
		return
	}
	writeJSON(w, http.StatusOK, toViolationDTOs(violations))
}

// GetRunTable streams one output table as CSV.
func (h *Handler) GetRunTable(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Run not found", err)
		return
	}

	name := strings.TrimSuffix(chi.URLParam(r, "table"), ".csv")
	table, ok := report.TableByName(run.Result, name)
	if !ok {
		writeError(w, http.StatusNotFound, "Table not found",
			fmt.Errorf("%s: %w (one of %s)", name, generic.ErrNotFound, strings.Join(report.TableNames, ", ")))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := report.WriteCSV(w, table); err != nil {
		h.Log.WithError(err).WithField("table", name).Warn("csv write failed")
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns saved scenarios without their documents.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.Store.ListScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, len(scenarios))
	for i, sc := range scenarios {
		dtos[i] = toScenarioDTO(sc, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario validates and saves a document. The document must convert
// into inputs the engine accepts; nothing is simulated.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	sj, err := h.decodeScenario(r)
	if err != nil {
		writeError(w, statusFor(err), "Invalid scenario", err)
		return
	}
	in, err := h.Factory.ToInputs(sj)
	if err == nil {
		_, err = finance.Validate(in)
	}
	if err != nil {
		writeError(w, statusFor(err), "Invalid scenario", err)
		return
	}

	doc, err := h.Factory.MarshalJSON(sj)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode scenario", err)
		return
	}
	sc := &finance.Scenario{Name: sj.Name, Document: doc}
	if err := h.Store.SaveScenario(r.Context(), sc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scenario", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScenarioDTO(sc, true))
}

// GetScenario returns a scenario with its document.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Scenario not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(sc, true))
}

// RunSavedScenario simulates a stored scenario.
func (h *Handler) RunSavedScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Scenario not found", err)
		return
	}
	sj, err := h.Factory.ParseJSON(sc.Document)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored scenario is unreadable", err)
		return
	}

	run, err := h.RunScenario(r.Context(), sc.ID, sj)
	if err != nil {
		writeError(w, statusFor(err), "Simulation failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDetailDTO(run, report.TableNames))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodeScenario(r *http.Request) (*factory.ScenarioJSON, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxDocumentBytes {
		return nil, &finance.ConfigError{Record: "scenario", Field: "body", Err: errors.New("document too large")}
	}

	format := "json"
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = "yaml"
	}
	return h.Factory.Parse(format, body)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case finance.IsConfigError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, finance.ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
