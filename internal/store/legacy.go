package store

import (
	"context"
	"database/sql"
)

// ListConversions returns the legacy flat conversion rows for a
// project's files. The table is read for bridging only; new pipeline
// code never writes to it.
func (s *Store) ListConversions(ctx context.Context, projectID string) ([]*Conversion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.project_file_id, c.src_lang, c.tgt_lang, c.version,
            c.xliff_rel_path, c.jliff_rel_path, c.tag_map_rel_path,
            c.status, c.error_message, c.created_at, c.updated_at
         FROM project_file_conversions c
         JOIN project_files f ON f.id = c.project_file_id
         WHERE f.project_id = ?
         ORDER BY c.created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list conversions")
	}
	defer rows.Close()

	var conversions []*Conversion
	for rows.Next() {
		var (
			c                         Conversion
			statusRaw                 string
			xliff, jliff, tagMap      sql.NullString
			errMsg                    sql.NullString
			createdRaw, updatedRaw    string
		)
		if err := rows.Scan(
			&c.ID, &c.FileID, &c.SrcLang, &c.TgtLang, &c.Version,
			&xliff, &jliff, &tagMap, &statusRaw, &errMsg,
			&createdRaw, &updatedRaw,
		); err != nil {
			return nil, mapSQLError(err, "scan conversion")
		}
		status, err := ParseConversionStatus(statusRaw)
		if err != nil {
			return nil, err
		}
		c.Status = status
		c.XLIFFRelPath = xliff.String
		c.JLIFFRelPath = jliff.String
		c.TagMapRelPath = tagMap.String
		c.ErrorMessage = errMsg.String
		if created, err := parseTimeString(createdRaw); err == nil {
			c.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			c.UpdatedAt = updated
		}
		conversions = append(conversions, &c)
	}
	return conversions, rows.Err()
}

// CountConversions reports how many legacy conversion rows a project
// has, used to decide whether a bridge pass is needed.
func (s *Store) CountConversions(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM project_file_conversions c
         JOIN project_files f ON f.id = c.project_file_id
         WHERE f.project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, mapSQLError(err, "count conversions")
	}
	return count, nil
}
