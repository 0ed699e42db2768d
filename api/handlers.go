package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pthm-cable/wealthsim/archive"
	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/sim"
)

// Handlers contains the HTTP handlers for the simulation service.
type Handlers struct {
	defaults *config.Config
	archive  *archive.DB
	maxWork  int
}

// NewHandlers creates handlers that merge request bodies over defaults.
func NewHandlers(defaults *config.Config) *Handlers {
	return &Handlers{defaults: defaults}
}

// WithArchive stores every simulated run in db and enables the /runs routes.
func (h *Handlers) WithArchive(db *archive.DB) *Handlers {
	h.archive = db
	return h
}

// WithMaxWork rejects runs whose total_population × max(num_time_steps, 1)
// exceeds limit. Seeding counts as one step of work. Zero disables the check.
func (h *Handlers) WithMaxWork(limit int) *Handlers {
	h.maxWork = limit
	return h
}

// HandleHealth handles GET /.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Message: "Backend is running"})
}

// HandleSimulate handles POST /simulate.
//
// The body is a partial config merged over the defaults. The optional seed
// query parameter fixes the random stream; without it a seed is drawn and
// returned in the X-Seed header.
//
// Response:
//
//	200 OK: []telemetry.StepReport
//	400 Bad Request: malformed body, invalid config or seed
//	422 Unprocessable Entity: run exceeds the configured work limit, or
//	    wealth overflowed before the last step
//	500 Internal Server Error: simulation, encoding or archive failure
func (h *Handlers) HandleSimulate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSimulate")

	seed := rand.Uint64()
	if raw := c.Query("seed"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			logger.Warn("Invalid seed", "seed", raw, "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid seed",
				Code:    CodeInvalidSeed,
				Details: err.Error(),
			})
			return
		}
		seed = parsed
	}

	body, err := c.GetRawData()
	if err != nil {
		logger.Warn("Failed to read body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read body", Code: CodeInvalidConfig})
		return
	}

	cfg, err := config.MergeJSON(h.defaults, body)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Warn("Invalid config", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid config",
			Code:    CodeInvalidConfig,
			Details: err.Error(),
		})
		return
	}

	if h.exceedsMaxWork(cfg) {
		logger.Warn("Run too large", "population", cfg.TotalPopulation, "steps", cfg.NumTimeSteps)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Run too large",
			Code:    CodeTooLarge,
			Details: fmt.Sprintf("total_population × max(num_time_steps, 1) must not exceed %d", h.maxWork),
		})
		return
	}

	s, err := sim.New(cfg, sim.Options{Seed: seed})
	if err != nil {
		logger.Error("Failed to create simulation", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create simulation", Code: CodeInternal})
		return
	}

	reports, err := s.RunContext(c.Request.Context())
	if errors.Is(err, sim.ErrNonFinite) {
		logger.Warn("Simulation overflowed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Simulation overflowed",
			Code:    CodeNonFinite,
			Details: err.Error(),
		})
		return
	}
	if err != nil {
		logger.Warn("Simulation stopped", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Simulation stopped",
			Code:    CodeInternal,
			Details: err.Error(),
		})
		return
	}

	// Encode before writing anything so a failure can still be a 500.
	data, err := json.Marshal(reports)
	if err != nil {
		logger.Error("Failed to encode reports", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to encode reports",
			Code:    CodeInternal,
			Details: err.Error(),
		})
		return
	}

	c.Header(HeaderSeed, strconv.FormatUint(seed, 10))
	if h.archive != nil {
		runID, err := h.archive.SaveRun(s.Snapshot(""))
		if err != nil {
			logger.Error("Failed to archive run", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to archive run", Code: CodeInternal})
			return
		}
		c.Header(HeaderRunID, runID)
	}

	logger.Info("Simulation complete", "seed", seed, "steps", len(reports), "population", cfg.TotalPopulation)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// exceedsMaxWork compares each factor against the limit separately so the
// product never overflows.
func (h *Handlers) exceedsMaxWork(cfg *config.Config) bool {
	if h.maxWork <= 0 {
		return false
	}
	pop := max(cfg.TotalPopulation, 1)
	steps := max(cfg.NumTimeSteps, 1)
	return pop > h.maxWork || steps > h.maxWork/pop
}

// HandleListRuns handles GET /runs. The optional limit query parameter
// defaults to 20.
func (h *Handlers) HandleListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid limit", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}

	runs, err := h.archive.ListRuns(limit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list runs", Code: CodeInternal})
		return
	}
	if runs == nil {
		runs = []archive.RunRecord{}
	}
	c.JSON(http.StatusOK, RunListResponse{Runs: runs})
}

// HandleGetRun handles GET /runs/:id and returns the archived snapshot.
func (h *Handlers) HandleGetRun(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.archive.LoadSnapshot(id)
	if errors.Is(err, archive.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Run not found", Code: CodeNotFound, Details: id})
		return
	}
	if err != nil {
		slog.Error("Failed to load run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load run", Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// getOrCreateRequestID echoes the caller's X-Request-ID or assigns one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(HeaderRequestID, requestID)
	return requestID
}
