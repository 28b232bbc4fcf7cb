package testsupport

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"loom/internal/store"
)

// InsertLegacyConversion plants a row in the flat legacy conversion
// table, which production code only ever reads. Tests use it to stand
// in for databases written by the previous implementation.
func InsertLegacyConversion(t testing.TB, st *store.Store, fileID, srcLang, tgtLang string, status store.ConversionStatus, xliffRel, jliffRel string) string {
	t.Helper()

	db, err := sql.Open("sqlite", st.Path())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = db.Exec(
		`INSERT INTO project_file_conversions (
            id, project_file_id, src_lang, tgt_lang, version,
            xliff_rel_path, jliff_rel_path, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, fileID, srcLang, tgtLang, "2.0",
		nullable(xliffRel), nullable(jliffRel), string(status), now, now)
	if err != nil {
		t.Fatalf("insert legacy conversion: %v", err)
	}
	return id
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
