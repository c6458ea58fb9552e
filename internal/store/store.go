// Package store persists the local session between runs: the current exam
// document, the current score record, the session phase and mode flags, and
// a history of completed attempts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/session"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS score_history (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		total_score REAL NOT NULL,
		obtained_score REAL NOT NULL,
		record TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// state keys for the session_state table.
const (
	keyExam      = "current_exam"
	keyRecord    = "score_record"
	keyPhase     = "phase"
	keyStudyMode = "study_mode"
)

func (s *Store) setState(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// getState returns the value for a state key, or empty string when missing.
func (s *Store) getState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SaveSession persists a complete session snapshot.
func (s *Store) SaveSession(phase session.Phase, studyMode bool, exam *model.Examination, rec *model.ScoreRecord) error {
	examJSON := ""
	if exam != nil {
		data, err := json.Marshal(exam)
		if err != nil {
			return fmt.Errorf("marshal exam: %w", err)
		}
		examJSON = string(data)
	}
	recJSON := ""
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		recJSON = string(data)
	}

	study := "0"
	if studyMode {
		study = "1"
	}

	for _, p := range []struct{ k, v string }{
		{keyExam, examJSON},
		{keyRecord, recJSON},
		{keyPhase, string(phase)},
		{keyStudyMode, study},
	} {
		if err := s.setState(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// LoadSession reads the persisted snapshot. A store with no saved session
// returns phase Empty and nil document/record.
func (s *Store) LoadSession() (session.Phase, bool, *model.Examination, *model.ScoreRecord, error) {
	phaseStr, err := s.getState(keyPhase)
	if err != nil {
		return session.PhaseEmpty, false, nil, nil, err
	}
	if phaseStr == "" {
		return session.PhaseEmpty, false, nil, nil, nil
	}
	phase := session.Phase(phaseStr)

	study, err := s.getState(keyStudyMode)
	if err != nil {
		return session.PhaseEmpty, false, nil, nil, err
	}

	var exam *model.Examination
	examJSON, err := s.getState(keyExam)
	if err != nil {
		return session.PhaseEmpty, false, nil, nil, err
	}
	if examJSON != "" {
		exam, err = model.Parse([]byte(examJSON))
		if err != nil {
			return session.PhaseEmpty, false, nil, nil, fmt.Errorf("stored exam: %w", err)
		}
	}

	var rec *model.ScoreRecord
	recJSON, err := s.getState(keyRecord)
	if err != nil {
		return session.PhaseEmpty, false, nil, nil, err
	}
	if recJSON != "" {
		rec = &model.ScoreRecord{}
		if err := json.Unmarshal([]byte(recJSON), rec); err != nil {
			return session.PhaseEmpty, false, nil, nil, fmt.Errorf("stored record: %w", err)
		}
	}

	return phase, study == "1", exam, rec, nil
}

// ClearSession removes the persisted snapshot; history is kept.
func (s *Store) ClearSession() error {
	_, err := s.db.Exec(`DELETE FROM session_state`)
	return err
}

// AppendHistory records a completed attempt. Repeated appends with the same
// record id overwrite the earlier row, so re-saving an attempt after AI
// grading updates it in place.
func (s *Store) AppendHistory(rec *model.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO score_history (id, exam_id, exam_title, completed_at, total_score, obtained_score, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET completed_at = ?, obtained_score = ?, record = ?`,
		rec.ID, rec.ExamID, rec.ExamTitle, rec.Timestamp, rec.TotalScore, rec.ObtainedScore, string(data),
		rec.Timestamp, rec.ObtainedScore, string(data),
	)
	return err
}

// HistoryEntry is one completed attempt as listed from history.
type HistoryEntry struct {
	ID            string    `json:"id"`
	ExamID        string    `json:"examId"`
	ExamTitle     string    `json:"examTitle"`
	CompletedAt   time.Time `json:"completedAt"`
	TotalScore    float64   `json:"totalScore"`
	ObtainedScore float64   `json:"obtainedScore"`
}

// ListHistory returns completed attempts, newest first.
func (s *Store) ListHistory() ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, exam_title, completed_at, total_score, obtained_score
		 FROM score_history ORDER BY completed_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ExamID, &e.ExamTitle, &e.CompletedAt, &e.TotalScore, &e.ObtainedScore); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetHistoryRecord returns the full stored record for an attempt.
func (s *Store) GetHistoryRecord(id string) (*model.ScoreRecord, error) {
	var data string
	err := s.db.QueryRow(`SELECT record FROM score_history WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &model.ScoreRecord{}
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return nil, fmt.Errorf("stored record %s: %w", id, err)
	}
	return rec, nil
}
