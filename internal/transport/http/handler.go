package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// ActorHeader carries the id of the admin performing a request.
const ActorHeader = "X-Actor-ID"

// Handler exposes the assignment use cases as JSON over HTTP.
type Handler struct {
	service *app.Service
	sweeper *app.Sweeper
	log     logrus.FieldLogger
}

func NewHandler(service *app.Service, sweeper *app.Sweeper, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, sweeper: sweeper, log: log}
}

// Routes mounts every endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/active-quiz", h.activeQuiz)
		r.Post("/quizzes/{quizID}/answers", h.submitAnswers)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/pending-quizzes/{quizID}", h.assignQuiz)
			r.Delete("/pending-quizzes", h.unassignQuiz)
			r.Delete("/pending-quizzes/{quizID}", h.unassignQuiz)
			r.Get("/future-quizzes", h.futureQuizzes)
			r.Post("/future-quizzes/{quizID}/skip", h.skipFutureQuiz)
		})
		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/auto-assign", h.autoAssign)
			r.Get("/", h.listQuizzes)
			r.Post("/", h.createQuiz)
			r.Get("/{quizID}", h.getQuiz)
			r.Put("/{quizID}", h.updateQuiz)
			r.Delete("/{quizID}", h.deleteQuiz)
		})
	})
	return r
}

type submitRequest struct {
	Answers []domain.Answer `json:"answers"`
}

func (h *Handler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.service.SubmitQuizAnswers(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "quizID"), req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) activeQuiz(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.GetActiveQuizForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if active == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (h *Handler) assignQuiz(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		h.writeError(w, r, domain.Invalid(ActorHeader, "header required"))
		return
	}
	err := h.service.AssignQuizToUser(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "quizID"), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) unassignQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnassignQuizFromUser(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "quizID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) futureQuizzes(w http.ResponseWriter, r *http.Request) {
	future, err := h.service.GetFutureQuizAssignments(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, future)
}

type skipRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) skipFutureQuiz(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(ActorHeader)
	if actor == "" {
		h.writeError(w, r, domain.Invalid(ActorHeader, "header required"))
		return
	}
	var req skipRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	err := h.service.RemoveFutureQuizAssignment(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "quizID"), actor, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) autoAssign(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		report, err := h.service.AutoAssignQuizzes(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	report, ran, err := h.sweeper.RunOnce(r.Context())
	if !ran {
		writeJSON(w, http.StatusConflict, errorBody{Error: "auto-assign sweep already running"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.QuizFilter{
		TriggerType: domain.TriggerType(q.Get("triggerType")),
		TenantID:    q.Get("tenantId"),
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, domain.Invalid("active", "must be a boolean"))
			return
		}
		filter.IsActive = &active
	}
	quizzes, err := h.service.ListQuizzes(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if !h.decode(w, r, &draft) {
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if !h.decode(w, r, &draft) {
		return
	}
	quiz, err := h.service.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, domain.Invalid("body", "malformed JSON"))
		return false
	}
	return true
}

// writeError maps error kinds to status codes. Unclassified errors are logged
// and hidden behind a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
