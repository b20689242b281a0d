package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dan9191/bureau-scoring/internal/cache"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/normalizer"
	"github.com/Dan9191/bureau-scoring/internal/scoring"
	"github.com/Dan9191/bureau-scoring/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc   *service.Service
	model *scoring.Coefficients
	log   *logrus.Logger
}

func NewHandler(svc *service.Service, model *scoring.Coefficients, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, model: model, log: log}
}

// NewRouter registers every route on a new router
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/v1/model", h.Model).Methods(http.MethodGet)
	r.HandleFunc("/v1/scores", h.CreateScore).Methods(http.MethodPost)
	r.HandleFunc("/v1/scores/{provider}/{subjectId}", h.GetScore).Methods(http.MethodGet)
	return r
}

type scoreRequest struct {
	SubjectID    string `json:"subjectId"`
	Provider     string `json:"provider"`
	ForceRefresh bool   `json:"forceRefresh"`
	Debug        bool   `json:"debug"`
}

// CreateScore handles a scoring request sent as a JSON body
func (h *Handler) CreateScore(w http.ResponseWriter, r *http.Request) {
	var body scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.score(w, r, body)
}

// GetScore handles a scoring request addressed by path
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()
	h.score(w, r, scoreRequest{
		SubjectID:    vars["subjectId"],
		Provider:     vars["provider"],
		ForceRefresh: queryBool(q.Get("refresh")),
		Debug:        queryBool(q.Get("debug")),
	})
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request, body scoreRequest) {
	subjectID := strings.TrimSpace(body.SubjectID)
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subjectId is required")
		return
	}
	provider, err := models.ParseProvider(strings.ToLower(strings.TrimSpace(body.Provider)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Score(r.Context(), cache.Request{
		SubjectID:    subjectID,
		Provider:     provider,
		ForceRefresh: body.ForceRefresh,
		Debug:        body.Debug,
	})
	var nerr *normalizer.NormalizationError
	switch {
	case errors.As(err, &nerr):
		writeError(w, http.StatusUnprocessableEntity, nerr.Error())
		return
	case err != nil:
		h.log.Errorf("Failed to score subject: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type modelResponse struct {
	Version   string             `json:"version"`
	Digest    string             `json:"digest"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
}

// Model describes the loaded coefficients table
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelResponse{
		Version:   h.model.Version(),
		Digest:    h.model.Digest(),
		Intercept: h.model.Intercept(),
		Weights:   h.model.Weights(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
