package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/api/middleware"
	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/prediction"
)

// maxPredictionBatch bounds a single ingestion request.
const maxPredictionBatch = 500

// maxPredictionBody bounds the ingestion request body in bytes.
const maxPredictionBody = 1 << 20

// PredictionHandler handles prediction endpoints.
type PredictionHandler struct {
	repo   prediction.Repository
	logger zerolog.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(repo prediction.Repository, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{repo: repo, logger: logger}
}

// ListPredictions handles GET /api/predictions.
func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	q, err := bindPredictionsQuery(r)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}

	predictions, err := h.repo.Latest(r.Context(), q.QuadrantName, q.Limit)
	if err != nil {
		h.logger.Error().Err(err).Str("quadrant", q.QuadrantName).Msg("query predictions")
		response.InternalError(w, r, "failed to load predictions")
		return
	}
	response.List(w, r, predictions)
}

// CreatePredictions handles POST /api/predictions. The body is a JSON array
// of predictions; all are validated before any is stored.
func (h *PredictionHandler) CreatePredictions(w http.ResponseWriter, r *http.Request) {
	var input []prediction.Prediction
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictionBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		response.InternalError(w, r, "invalid JSON body: "+err.Error())
		return
	}

	if len(input) == 0 {
		response.InternalError(w, r, "no predictions given")
		return
	}
	if len(input) > maxPredictionBatch {
		response.InternalError(w, r, fmt.Sprintf("at most %d predictions per request", maxPredictionBatch))
		return
	}
	for i := range input {
		if err := validateStruct(input[i]); err != nil {
			response.InternalError(w, r, fmt.Sprintf("%s %d: %s", prediction.ErrInvalidPrediction, i, err))
			return
		}
	}

	subject := middleware.GetSubject(r.Context())
	for i := range input {
		input[i].ID = 0
		if input[i].ModelMetadata == nil {
			input[i].ModelMetadata = map[string]any{}
		}
		if subject != "" {
			input[i].ModelMetadata["ingested_by"] = subject
		}
	}

	if err := h.repo.StoreBatch(r.Context(), input); err != nil {
		h.logger.Error().Err(err).Int("predictions", len(input)).Msg("store predictions")
		response.InternalError(w, r, "failed to store predictions")
		return
	}

	h.logger.Info().Str("subject", subject).Int("predictions", len(input)).Msg("predictions ingested")
	response.Created(w, r, models.IngestResult{Stored: len(input)})
}
