package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/util"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.appCtx.Estimator == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "estimator not available")
		return
	}
	var req PredictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fv, res := s.appCtx.Estimator.PredictRaw(r.Context(), req)
	writeAPIJSON(w, http.StatusOK, PredictResponse{PredictionResult: res, Features: fv})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if s.appCtx.Estimator == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "estimator not available")
		return
	}
	writeAPIJSON(w, http.StatusOK, s.appCtx.Estimator.Status())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := memory.TaskFilter{UserID: q.Get("user_id"), IncludeCompleted: true}
	if v := q.Get("include_completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "include_completed must be a boolean")
			return
		}
		filter.IncludeCompleted = b
	}

	tasks, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeAPIJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeBody(w, r, &req) || !validRequest(w, &req) {
		return
	}
	res, err := s.tasks.Create(r.Context(), app.CreateTaskOptions{
		UserID:  req.UserID,
		Title:   req.Title,
		Context: req.Context,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id, r.URL.Query().Get("user_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id, r.URL.Query().Get("user_id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.timerAction(w, r, s.tasks.Start)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.timerAction(w, r, s.tasks.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.timerAction(w, r, s.tasks.Resume)
}

type timerFunc func(ctx context.Context, id, userID string) (*app.TimerResult, error)

func (s *Server) timerAction(w http.ResponseWriter, r *http.Request, fn timerFunc) {
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	var req TimerRequest
	if !decodeOptionalBody(w, r, &req) || !validRequest(w, &req) {
		return
	}
	res, err := fn(r.Context(), id, req.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, res)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if !decodeOptionalBody(w, r, &req) || !validRequest(w, &req) {
		return
	}
	res, err := s.tasks.Complete(r.Context(), app.CompleteOptions{
		TaskID:        id,
		UserID:        req.UserID,
		ActualMinutes: req.ActualMinutes,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if res.ModelSaveError != "" {
		slog.WarnContext(r.Context(), "model learned but not persisted", "task_id", id, "error", res.ModelSaveError)
	}
	writeAPIJSON(w, http.StatusOK, res)
}

func (s *Server) resolveID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		writeAPIError(w, http.StatusBadRequest, "missing id")
		return "", false
	}
	id, err := s.tasks.Resolve(r.Context(), raw)
	if err != nil {
		writeErr(w, r, err)
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func validRequest(w http.ResponseWriter, v any) bool {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), fe.Tag()))
			return false
		}
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, memory.ErrTaskNotFound), errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, task.ErrTaskCompleted), errors.Is(err, memory.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, util.ErrAmbiguousID), errors.Is(err, task.ErrInvalidTask), errors.Is(err, task.ErrInvalidActualMinutes):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "api request failed", "path", r.URL.Path, "error", err)
		writeAPIError(w, status, "internal error")
		return
	}
	writeAPIError(w, status, err.Error())
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeAPIJSON(w, status, ErrorResponse{Error: msg})
}

func writeAPIJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
