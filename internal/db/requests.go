package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Request statuses. Pending is the only non-terminal one.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
)

var (
	// ErrNotFound is returned when a request does not exist.
	ErrNotFound = errors.New("request not found")

	// ErrAlreadyResolved is returned when a status transition finds the
	// request no longer pending. The caller must not re-apply side effects.
	ErrAlreadyResolved = errors.New("request already resolved")
)

type Request struct {
	ID             int64      `db:"id"`
	UserID         int64      `db:"user_id"`
	Username       *string    `db:"username"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	ApprovedAt     *time.Time `db:"approved_at"`
	AdminMessageID *int64     `db:"admin_message_id"`
}

type Response struct {
	ID         int64  `db:"id"`
	RequestID  int64  `db:"request_id"`
	QuestionID string `db:"question_id"`
	Answer     string `db:"answer"`
}

type RequestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{
		db: db,
	}
}

// CreateWithResponses inserts the request and all its responses in a single
// transaction, so a completed application is never visible half-written.
// The request's ID and CreatedAt are filled in on success.
func (r *RequestRepository) CreateWithResponses(req *Request, responses []Response) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("RequestRepository.CreateWithResponses: %w", err)
	}
	defer tx.Rollback()

	req.Status = StatusPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	req.ID, err = r.insertRequest(tx, req)
	if err != nil {
		return fmt.Errorf("RequestRepository.CreateWithResponses: %w", err)
	}

	for _, resp := range responses {
		_, err = tx.Exec(tx.Rebind(`
		    INSERT INTO responses (request_id, question_id, answer)
			VALUES (?, ?, ?)
		`), req.ID, resp.QuestionID, resp.Answer)
		if err != nil {
			return fmt.Errorf("RequestRepository.CreateWithResponses: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("RequestRepository.CreateWithResponses: %w", err)
	}

	return nil
}

func (r *RequestRepository) insertRequest(tx *sqlx.Tx, req *Request) (int64, error) {
	if r.db.DriverName() == "postgres" {
		var id int64
		err := tx.QueryRow(tx.Rebind(`
		    INSERT INTO requests (user_id, username, first_name, last_name, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`), req.UserID, req.Username, req.FirstName, req.LastName, req.Status, req.CreatedAt).Scan(&id)
		return id, err
	}

	res, err := tx.Exec(tx.Rebind(`
	    INSERT INTO requests (user_id, username, first_name, last_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), req.UserID, req.Username, req.FirstName, req.LastName, req.Status, req.CreatedAt)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *RequestRepository) GetByID(requestID int64) (*Request, error) {
	var req Request

	err := r.db.Get(&req, r.db.Rebind(`
	    SELECT * FROM requests
		WHERE id = ?
	`), requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("RequestRepository.GetByID: %w", err)
	}

	return &req, nil
}

// GetPendingByUserID returns the user's pending request, or nil if they have
// none in flight.
func (r *RequestRepository) GetPendingByUserID(userID int64) (*Request, error) {
	var req Request

	err := r.db.Get(&req, r.db.Rebind(`
	    SELECT * FROM requests
		WHERE user_id = ? AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("RequestRepository.GetPendingByUserID: %w", err)
	}

	return &req, nil
}

func (r *RequestRepository) GetByAdminMessageID(adminMessageID int64) (*Request, error) {
	var req Request

	err := r.db.Get(&req, r.db.Rebind(`
	    SELECT * FROM requests
		WHERE admin_message_id = ?
	`), adminMessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("RequestRepository.GetByAdminMessageID: %w", err)
	}

	return &req, nil
}

// ListPendingOlderThan returns pending requests created before cutoff,
// oldest first.
func (r *RequestRepository) ListPendingOlderThan(cutoff time.Time) ([]Request, error) {
	var reqs []Request

	err := r.db.Select(&reqs, r.db.Rebind(`
	    SELECT * FROM requests
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at ASC
	`), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.ListPendingOlderThan: %w", err)
	}

	return reqs, nil
}

// SetAdminMessageID records which admin-chat message announces this request.
// It is set at most once; later calls are no-ops.
func (r *RequestRepository) SetAdminMessageID(requestID int64, messageID int64) error {
	_, err := r.db.Exec(r.db.Rebind(`
	    UPDATE requests
		SET admin_message_id = ?
		WHERE id = ? AND admin_message_id IS NULL
	`), messageID, requestID)
	if err != nil {
		return fmt.Errorf("RequestRepository.SetAdminMessageID: %w", err)
	}

	return nil
}

// Resolve moves a pending request to a terminal status. The update is
// conditional on status still being pending; if another path resolved the
// request first, ErrAlreadyResolved is returned and nothing is changed.
func (r *RequestRepository) Resolve(requestID int64, status string) error {
	if status != StatusApproved && status != StatusDeclined && status != StatusExpired {
		return fmt.Errorf("RequestRepository.Resolve: %q is not a terminal status", status)
	}

	res, err := r.db.Exec(r.db.Rebind(`
	    UPDATE requests
		SET status = ?, approved_at = ?
		WHERE id = ? AND status = 'pending'
	`), status, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("RequestRepository.Resolve: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RequestRepository.Resolve: %w", err)
	}

	if affected == 0 {
		return ErrAlreadyResolved
	}

	return nil
}

// GetResponses returns all recorded answers for a request.
func (r *RequestRepository) GetResponses(requestID int64) ([]Response, error) {
	var responses []Response

	err := r.db.Select(&responses, r.db.Rebind(`
	    SELECT * FROM responses
		WHERE request_id = ?
		ORDER BY id ASC
	`), requestID)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.GetResponses: %w", err)
	}

	return responses, nil
}
