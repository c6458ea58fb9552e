// Package handler exposes the exam session over a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/openexams/examtaker/internal/export"
	"github.com/openexams/examtaker/internal/grader"
	"github.com/openexams/examtaker/internal/migrate"
	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/session"
	"github.com/openexams/examtaker/internal/store"
)

// maxExamBytes bounds uploaded exam documents.
const maxExamBytes = 16 << 20

// Handler holds shared dependencies for HTTP handlers. The store and grading
// client are optional: a nil store skips persistence, a nil client turns AI
// grading requests into errors.
type Handler struct {
	session *session.Session
	store   *store.Store
	grader  grader.Client

	mu          sync.Mutex
	lastReports []grader.Report
}

// New creates a new Handler.
func New(sess *session.Session, s *store.Store, g grader.Client) *Handler {
	return &Handler{session: sess, store: s, grader: g}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/exam/load", h.handleLoad)
	r.Post("/exam/start", h.handleStart)
	r.Post("/exam/answer", h.handleAnswer)
	r.Post("/exam/end", h.handleEnd)
	r.Post("/exam/reset", h.handleReset)
	r.Post("/exam/grade", h.handleGrade)
	r.Post("/exam/explain", h.handleExplain)
	r.Post("/exam/verify", h.handleVerify)
	r.Get("/exam", h.handleGetExam)
	r.Get("/exam/record", h.handleGetRecord)
	r.Get("/exam/status", h.handleStatus)
	r.Get("/export/json", h.handleExportJSON)
	r.Get("/export/markdown", h.handleExportMarkdown)
	r.Get("/history", h.handleHistory)
	r.Get("/history/{recordID}", h.handleHistoryRecord)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// statusFor maps recoverable session errors to 4xx responses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUsage):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// persist saves the current session snapshot; persistence failures are logged
// but never fail the request that triggered them.
func (h *Handler) persist() {
	if h.store == nil {
		return
	}
	err := h.store.SaveSession(h.session.Phase(), h.session.StudyMode(), h.session.Exam(), h.session.Record())
	if err != nil {
		slog.Error("persist session", "error", err)
	}
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxExamBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	exam, err := model.Parse(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Older documents are upgraded before they reach the session.
	upgraded, _, err := migrate.Migrate(exam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.LoadExam(upgraded); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.persist()
	respondJSON(w, http.StatusOK, map[string]any{
		"phase":    h.session.Phase(),
		"examId":   upgraded.Metadata.ExamID,
		"title":    upgraded.Metadata.Title,
		"sections": len(upgraded.Sections),
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudyMode bool `json:"studyMode"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := h.session.StartExam(req.StudyMode); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.persist()
	respondJSON(w, http.StatusOK, map[string]any{
		"phase":     h.session.Phase(),
		"studyMode": req.StudyMode,
	})
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SectionIndex  int      `json:"sectionIndex"`
		QuestionIndex int      `json:"questionIndex"`
		Answer        []string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.session.UpdateUserAnswer(req.SectionIndex, req.QuestionIndex, req.Answer)
	h.persist()
	respondJSON(w, http.StatusOK, map[string]any{"phase": h.session.Phase()})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	rec, err := h.session.EndExam()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.persist()
	if h.store != nil {
		if err := h.store.AppendHistory(rec); err != nil {
			slog.Error("append history", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.session.ResetExam()
	h.mu.Lock()
	h.lastReports = nil
	h.mu.Unlock()
	if h.store != nil {
		if err := h.store.ClearSession(); err != nil {
			slog.Error("clear session", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"phase": h.session.Phase()})
}

// handleGrade runs the AI grading batch over every AI-judged answered
// question and merges the results into the score record.
func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	if h.grader == nil {
		http.Error(w, "AI grading is not configured", http.StatusServiceUnavailable)
		return
	}
	if h.session.Phase() != session.PhaseCompleted {
		http.Error(w, "exam is not completed", http.StatusConflict)
		return
	}

	exam := h.session.Exam()
	rec := h.session.Record().Clone()
	questions := grader.Collect(exam)

	reports := grader.GradeAll(r.Context(), questions, rec, h.grader, func(rep grader.Report) {
		slog.Debug("grading progress", "question_id", rep.QuestionID, "status", rep.Status)
	})

	h.session.ApplyRecord(rec)
	h.mu.Lock()
	h.lastReports = reports
	h.mu.Unlock()

	h.persist()
	if h.store != nil {
		if err := h.store.AppendHistory(rec); err != nil {
			slog.Error("append history", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"record":  rec,
	})
}

// Assistant is the optional tutoring surface of a grading client.
type Assistant interface {
	Explain(ctx context.Context, q *model.Question) (string, error)
	Verify(ctx context.Context, q *model.Question) (string, error)
}

// questionAt resolves a section/question index pair against the current
// document snapshot.
func (h *Handler) questionAt(sectionIndex, questionIndex int) *model.Question {
	exam := h.session.Exam()
	if exam == nil || sectionIndex < 0 || sectionIndex >= len(exam.Sections) {
		return nil
	}
	qs := exam.Sections[sectionIndex].Questions
	if questionIndex < 0 || questionIndex >= len(qs) {
		return nil
	}
	return &qs[questionIndex]
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	h.handleAssist(w, r, func(a Assistant, ctx context.Context, q *model.Question) (string, error) {
		return a.Explain(ctx, q)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.handleAssist(w, r, func(a Assistant, ctx context.Context, q *model.Question) (string, error) {
		return a.Verify(ctx, q)
	})
}

func (h *Handler) handleAssist(w http.ResponseWriter, r *http.Request, call func(Assistant, context.Context, *model.Question) (string, error)) {
	assistant, ok := h.grader.(Assistant)
	if !ok {
		http.Error(w, "AI assistance is not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		SectionIndex  int `json:"sectionIndex"`
		QuestionIndex int `json:"questionIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	q := h.questionAt(req.SectionIndex, req.QuestionIndex)
	if q == nil {
		http.Error(w, "question not found", http.StatusNotFound)
		return
	}

	text, err := call(assistant, r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	exam := h.session.Exam()
	if exam == nil {
		http.Error(w, "no exam loaded", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, exam)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec := h.session.Record()
	if rec == nil {
		http.Error(w, "no exam loaded", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"phase":     h.session.Phase(),
		"studyMode": h.session.StudyMode(),
	})
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	exam := h.session.Exam()
	if exam == nil {
		http.Error(w, "no exam loaded", http.StatusNotFound)
		return
	}
	data, err := export.JSON(exam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="exam-results.json"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	exam := h.session.Exam()
	rec := h.session.Record()
	if exam == nil || rec == nil {
		http.Error(w, "no exam loaded", http.StatusNotFound)
		return
	}

	h.mu.Lock()
	feedback := export.FeedbackFromReports(h.lastReports)
	h.mu.Unlock()

	md, err := export.Markdown(exam, rec, feedback)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="exam-report.md"`)
	_, _ = io.WriteString(w, md)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "history is not configured", http.StatusServiceUnavailable)
		return
	}
	entries, err := h.store.ListHistory()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleHistoryRecord(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "history is not configured", http.StatusServiceUnavailable)
		return
	}
	rec, err := h.store.GetHistoryRecord(chi.URLParam(r, "recordID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
