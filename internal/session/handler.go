package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"
	"github.com/builtbymaxim/healthpulse/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=session_test

type sessionTracker interface {
	Start(ctx context.Context, params StartParams) (*Status, error)
	Pause(ctx context.Context) (*Status, error)
	Resume(ctx context.Context) (*Status, error)
	Observe(ctx context.Context, fix Fix) (*FixResult, error)
	Status() (*Status, error)
	Finish(ctx context.Context, params FinishParams) (*Summary, error)
	Discard(ctx context.Context) error
}

type DiscardSessionResponse struct {
	Discarded bool `json:"discarded"`
}

type Handler struct {
	tracker sessionTracker
}

func NewHandler(tracker sessionTracker) *Handler {
	return &Handler{
		tracker: tracker,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.handleStatus).Methods("GET", "OPTIONS").Name("session-status")
	router.HandleFunc("/start", handler.handleStart).Methods("POST", "OPTIONS").Name("start-session")
	router.HandleFunc("/pause", handler.handlePause).Methods("POST", "OPTIONS").Name("pause-session")
	router.HandleFunc("/resume", handler.handleResume).Methods("POST", "OPTIONS").Name("resume-session")
	router.HandleFunc("/fix", handler.handleFix).Methods("POST", "OPTIONS").Name("new-fix")
	router.HandleFunc("/finish", handler.handleFinish).Methods("POST", "OPTIONS").Name("finish-session")
	router.HandleFunc("/discard", handler.handleDiscard).Methods("POST", "OPTIONS").Name("discard-session")
}

func (handler *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.start")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var params StartParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("start session, unmarshal json params: %s", err)
		http.Error(w, "start session failed", http.StatusBadRequest)
		return
	}

	status, err := handler.tracker.Start(ctx, params)
	if err != nil {
		writeTrackerError(w, "start session", err)
		return
	}

	statusJson, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal session status: %s", err)
		http.Error(w, "start session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statusJson, http.StatusCreated)
}

func (handler *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.pause")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := handler.tracker.Pause(ctx)
	if err != nil {
		writeTrackerError(w, "pause session", err)
		return
	}

	statusJson, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal session status: %s", err)
		http.Error(w, "pause session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusJson)
}

func (handler *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.resume")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := handler.tracker.Resume(ctx)
	if err != nil {
		writeTrackerError(w, "resume session", err)
		return
	}

	statusJson, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal session status: %s", err)
		http.Error(w, "resume session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusJson)
}

func (handler *Handler) handleFix(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.fix")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var fix Fix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		log.Tracef("new fix, unmarshal json params: %s", err)
		http.Error(w, "process fix failed", http.StatusBadRequest)
		return
	}

	result, err := handler.tracker.Observe(ctx, fix)
	if err != nil {
		writeTrackerError(w, "process fix", err)
		return
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal fix result: %s", err)
		http.Error(w, "process fix failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resultJson)
}

func (handler *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.status")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := handler.tracker.Status()
	if err != nil {
		writeTrackerError(w, "get session status", err)
		return
	}

	statusJson, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal session status: %s", err)
		http.Error(w, "get session status failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusJson)
}

func (handler *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.finish")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var params FinishParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("finish session, unmarshal json params: %s", err)
		http.Error(w, "finish session failed", http.StatusBadRequest)
		return
	}

	summary, err := handler.tracker.Finish(ctx, params)
	if err != nil {
		writeTrackerError(w, "finish session", err)
		return
	}

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("failed to marshal session summary: %s", err)
		http.Error(w, "finish session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summaryJson)
}

func (handler *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "sessionHandler.discard")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := handler.tracker.Discard(ctx); err != nil {
		writeTrackerError(w, "discard session", err)
		return
	}

	respJson, err := json.Marshal(DiscardSessionResponse{Discarded: true})
	if err != nil {
		log.Errorf("failed to marshal discard response: %s", err)
		http.Error(w, "discard session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func writeTrackerError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNoSession):
		http.Error(w, "no active session", http.StatusNotFound)
	case errors.Is(err, ErrSessionActive):
		http.Error(w, "a session is already active", http.StatusConflict)
	case errors.Is(err, ErrSessionPaused):
		http.Error(w, "session is already paused", http.StatusConflict)
	case errors.Is(err, ErrSessionNotPaused):
		http.Error(w, "session is not paused", http.StatusConflict)
	default:
		log.Errorf("%s: %s", action, err)
		http.Error(w, action+" failed", http.StatusInternalServerError)
	}
}
