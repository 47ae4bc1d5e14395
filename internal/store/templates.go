package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"emspulse/internal/errors"
	"emspulse/pkg/contracts/domain"
)

// InsertTemplate stores a report template and returns its id.
func (s *Store) InsertTemplate(ctx context.Context, tmpl *domain.Template) (int64, error) {
	params, err := json.Marshal(tmpl.Parameters)
	if err != nil {
		return 0, fmt.Errorf("encode parameters: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO report_templates (name, report_group, room_id, room_name, additional_info, parameters)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tmpl.Name, tmpl.ReportGroup, tmpl.RoomID, tmpl.RoomName, tmpl.AdditionalInfo, string(params))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTemplate loads one template by id.
func (s *Store) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, report_group, room_id, room_name, additional_info, parameters
		 FROM report_templates WHERE id = ?`, id)

	tmpl, err := scanTemplate(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, errors.ErrTemplateNotFound)
	}
	return tmpl, err
}

// ListTemplates returns every template ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, report_group, room_id, room_name, additional_info, parameters
		 FROM report_templates ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var templates []*domain.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(r rowScanner) (*domain.Template, error) {
	var tmpl domain.Template
	var params string
	if err := r.Scan(&tmpl.ID, &tmpl.Name, &tmpl.ReportGroup, &tmpl.RoomID,
		&tmpl.RoomName, &tmpl.AdditionalInfo, &params); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &tmpl.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters for template %d: %w", tmpl.ID, err)
	}
	return &tmpl, nil
}
