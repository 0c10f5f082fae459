package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/bloc-scheduler/internal/bloc"
)

// TemplateRepository implements persistence.TemplateRepository on SQLite.
// Slots are stored as one JSON document per template.
type TemplateRepository struct {
	pool *ConnectionPool
}

// NewTemplateRepository creates a SQLite template repository.
func NewTemplateRepository(pool *ConnectionPool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// SaveTemplate upserts a template.
func (r *TemplateRepository) SaveTemplate(ctx context.Context, template bloc.Template) error {
	slots, err := json.Marshal(template.Slots)
	if err != nil {
		return fmt.Errorf("sqlite: encode slots: %w", err)
	}
	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, active, site_id, slots)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			site_id = excluded.site_id,
			slots = excluded.slots`,
		template.ID, template.Name, boolToInt(template.Active), template.SiteID, string(slots),
	)
	return mapSQLError(err)
}

// ListTemplates returns the templates matching the identifiers and site.
// Unknown identifiers are simply absent from the result.
func (r *TemplateRepository) ListTemplates(ctx context.Context, ids []string, siteID string) ([]bloc.Template, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, siteID)

	query := fmt.Sprintf(
		"SELECT id, name, active, site_id, slots FROM templates WHERE id IN (%s) AND site_id = ? ORDER BY id ASC",
		placeholders(len(ids)),
	)
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []bloc.Template
	for rows.Next() {
		var (
			template bloc.Template
			active   int
			slotsRaw string
		)
		if err := rows.Scan(&template.ID, &template.Name, &active, &template.SiteID, &slotsRaw); err != nil {
			return nil, mapSQLError(err)
		}
		template.Active = active != 0
		if err := json.Unmarshal([]byte(slotsRaw), &template.Slots); err != nil {
			return nil, fmt.Errorf("sqlite: decode slots: %w", err)
		}
		out = append(out, template)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}
