package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over PostgreSQL. The audit_logs table carries no
// update or delete path anywhere in the codebase.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs(id, actor_id, action, resource_type, resource_id, ip_address, user_agent, details, created_at)
		values ($1, nullif($2,''), $3, $4, nullif($5,''), $6, $7, $8, $9)
	`, entry.ID, entry.ActorID, string(entry.Action), entry.ResourceType,
		entry.ResourceID, entry.IPAddress, entry.UserAgent, details, entry.CreatedAt)
	return err
}

func (s *PGStore) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := `select count(*) from audit_logs` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := `
		select id, coalesce(actor_id,''), action, resource_type, coalesce(resource_id,''), ip_address, user_agent, details, created_at
		from audit_logs` + where + fmt.Sprintf(`
		order by created_at desc
		limit $%d offset $%d`, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, offset)...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	result := ListResult{Page: filter.Page, Limit: filter.Limit, Total: total}
	for rows.Next() {
		var (
			entry   Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &action, &entry.ResourceType,
			&entry.ResourceID, &entry.IPAddress, &entry.UserAgent, &details, &entry.CreatedAt); err != nil {
			return ListResult{}, err
		}
		entry.Action = Action(action)
		_ = json.Unmarshal(details, &entry.Details)
		result.Entries = append(result.Entries, entry)
	}
	return result, rows.Err()
}

func buildFilter(filter ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}
