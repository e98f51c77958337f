package repo

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fetcharr/internal/domain/consts"
)

// SessionStore maps client session IDs to the job IDs they submitted.
type SessionStore struct {
	DB *sql.DB
}

// NewSessionStore returns a session store with injected database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{DB: db}
}

// Track records that clientID submitted jobID. Idempotent.
func (ss *SessionStore) Track(clientID, jobID string) error {
	query := sq.Insert(consts.DBSessionDownloads).
		Options("OR IGNORE").
		Columns(consts.QSessionClientID, consts.QSessionJobID, consts.QSessionCreatedAt).
		Values(clientID, jobID, time.Now().UTC()).
		RunWith(ss.DB)

	if _, err := query.Exec(); err != nil {
		return fmt.Errorf("failed to track job %q for client %q: %w", jobID, clientID, err)
	}
	return nil
}

// JobIDs returns the job IDs submitted by clientID, oldest first.
func (ss *SessionStore) JobIDs(clientID string) ([]string, error) {
	rows, err := sq.Select(consts.QSessionJobID).
		From(consts.DBSessionDownloads).
		Where(sq.Eq{consts.QSessionClientID: clientID}).
		OrderBy(consts.QSessionCreatedAt + " ASC").
		RunWith(ss.DB).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for client %q: %w", clientID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Untrack removes one job from a client's history.
func (ss *SessionStore) Untrack(clientID, jobID string) error {
	query := sq.Delete(consts.DBSessionDownloads).
		Where(sq.Eq{
			consts.QSessionClientID: clientID,
			consts.QSessionJobID:    jobID,
		}).
		RunWith(ss.DB)

	if _, err := query.Exec(); err != nil {
		return fmt.Errorf("failed to untrack job %q for client %q: %w", jobID, clientID, err)
	}
	return nil
}

// UntrackJob removes jobID from every client's history, used when a job is
// cleared from the manager.
func (ss *SessionStore) UntrackJob(jobID string) error {
	query := sq.Delete(consts.DBSessionDownloads).
		Where(sq.Eq{consts.QSessionJobID: jobID}).
		RunWith(ss.DB)

	if _, err := query.Exec(); err != nil {
		return fmt.Errorf("failed to untrack job %q: %w", jobID, err)
	}
	return nil
}

// ClearClient wipes a client's whole history.
func (ss *SessionStore) ClearClient(clientID string) error {
	query := sq.Delete(consts.DBSessionDownloads).
		Where(sq.Eq{consts.QSessionClientID: clientID}).
		RunWith(ss.DB)

	if _, err := query.Exec(); err != nil {
		return fmt.Errorf("failed to clear history for client %q: %w", clientID, err)
	}
	return nil
}
