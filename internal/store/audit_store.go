package store

import (
	"context"
	"time"
)

type AuditStore struct {
	db DB
}

type AuditLog struct {
	ID          string    `db:"id"`
	ActorUserID *string   `db:"actor_user_id"`
	Action      string    `db:"action"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	Data        string    `db:"data"`
	CreatedAt   time.Time `db:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, businessID, actorID, action, entityType, entityID, data string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, business_id, actor_user_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
	`, businessID, actorID, action, entityType, entityID, data)
	return err
}

func (s *AuditStore) List(ctx context.Context, businessID string, limit, offset int) ([]AuditLog, error) {
	var rows []AuditLog
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
