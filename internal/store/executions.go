package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Execution records one attempt to carry out a shutdown action.
type Execution struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	PluginAction string    `json:"plugin_action"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	DryRun       bool      `json:"dry_run"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExecutionRepository stores the execution audit trail.
type ExecutionRepository struct {
	db *sql.DB
}

// Executions returns the execution repository for this store.
func (s *Store) Executions() *ExecutionRepository {
	return &ExecutionRepository{db: s.db}
}

// Create inserts e, assigning an ID and timestamp when they are unset.
func (r *ExecutionRepository) Create(e *Execution) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO executions (id, action, plugin_action, success, error, dry_run, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.PluginAction, e.Success, e.Error, e.DryRun, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an execution by its ID.
func (r *ExecutionRepository) GetByID(id string) (*Execution, error) {
	row := r.db.QueryRow(
		`SELECT id, action, plugin_action, success, error, dry_run, created_at
		 FROM executions WHERE id = ?`,
		id,
	)

	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListRecent returns up to limit executions, newest first.
func (r *ExecutionRepository) ListRecent(limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, action, plugin_action, success, error, dry_run, created_at
		 FROM executions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := []*Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return executions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (*Execution, error) {
	e := &Execution{}
	var success, dryRun int

	if err := s.Scan(&e.ID, &e.Action, &e.PluginAction, &success, &e.Error, &dryRun, &e.CreatedAt); err != nil {
		return nil, err
	}

	e.Success = success != 0
	e.DryRun = dryRun != 0
	return e, nil
}
