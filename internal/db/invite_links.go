package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// InviteLink is an audit record of a single-use invite link issued when an
// approved user could not be added to the group directly.
type InviteLink struct {
	ID        int64     `db:"id"`
	RequestID int64     `db:"request_id"`
	Link      string    `db:"link"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type InviteLinkRepository struct {
	db *sqlx.DB
}

func NewInviteLinkRepository(db *sqlx.DB) *InviteLinkRepository {
	return &InviteLinkRepository{
		db: db,
	}
}

func (r *InviteLinkRepository) Create(link *InviteLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(r.db.Rebind(`
	    INSERT INTO invite_links (request_id, link, name, created_at)
		VALUES (?, ?, ?, ?)
	`), link.RequestID, link.Link, link.Name, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("InviteLinkRepository.Create: %w", err)
	}

	return nil
}

func (r *InviteLinkRepository) ListByRequestID(requestID int64) ([]InviteLink, error) {
	var links []InviteLink

	err := r.db.Select(&links, r.db.Rebind(`
	    SELECT * FROM invite_links
		WHERE request_id = ?
		ORDER BY id ASC
	`), requestID)
	if err != nil {
		return nil, fmt.Errorf("InviteLinkRepository.ListByRequestID: %w", err)
	}

	return links, nil
}
