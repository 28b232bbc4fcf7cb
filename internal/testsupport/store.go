package testsupport

import (
	"testing"

	"loom/internal/config"
	"loom/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.AppDir, store.DefaultPerfConfig(), nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SampleSeed builds a seed for one project with a single language pair
// and the given processable source files.
func SampleSeed(name, rootPath string, fileNames ...string) store.ProjectSeed {
	seed := store.ProjectSeed{
		Name:           name,
		Slug:           name,
		Type:           store.ProjectTypeTranslation,
		OwnerUserID:    store.LocalUserID,
		RootPath:       rootPath,
		DefaultSrcLang: "en-US",
		DefaultTrgLang: "it-IT",
		Pairs:          []store.PairSeed{{SrcLang: "en-US", TrgLang: "it-IT"}},
	}
	for _, fileName := range fileNames {
		seed.Files = append(seed.Files, store.FileSeed{
			OriginalName:  fileName,
			OriginalPath:  "/tmp/" + fileName,
			StoredRelPath: "original/" + fileName,
			Ext:           "docx",
			Role:          store.RoleSource,
			MimeType:      "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Processable:   true,
		})
	}
	return seed
}
