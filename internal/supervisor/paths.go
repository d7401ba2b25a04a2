package supervisor

import (
	"path/filepath"
	"strings"

	"github.com/gwlsn/pipeline/internal/config"
)

// DerivePath computes a detected file's output destination for its
// profile (spec.md §4.7). template mode is reserved and behaves as
// preserve with the original extension (§9 Open Question #1).
func DerivePath(sourcePath string, profile config.Profile) string {
	rel, err := filepath.Rel(profile.InputPath, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = sourcePath
	}

	base := profile.OutputPath
	if profile.OutputStructure == config.StructureMirror {
		base = filepath.Join(base, filepath.Dir(rel))
	}

	ext := filepath.Ext(rel)
	stem := strings.TrimSuffix(filepath.Base(rel), ext)

	var filename string
	switch profile.FilenameMode {
	case config.FilenameTemplate:
		// Reserved (spec.md §9 Open Question #1): behaves as preserve but
		// keeps the source extension instead of forcing ".mkv".
		filename = stem + profile.FilenameSuffix + ext
	default: // preserve
		filename = stem + profile.FilenameSuffix + ".mkv"
	}

	return filepath.Join(base, filename)
}
