package texture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// ExtractBundledArchives finds every *.zip/*.rar file anywhere under
// root and extracts each into its own subdirectory of scratchDir, so later
// texture resolution (Resolver) can search scratchDir alongside the
// loose asset tree. Mirrors the teacher's methods.Unzip
// extension-dispatch, generalized to archiver.v3's unified Unarchive.
//
// Malformed archives are logged to the returned warnings slice and
// skipped; they never fail the overall scan, since BGL decoding does
// not depend on textures being present (spec §4.17).
func ExtractBundledArchives(root, scratchDir string) (warnings []string, err error) {
	if root == "" {
		return nil, nil
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("texture: creating scratch dir: %w", err)
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".zip" && ext != ".rar" {
			return nil
		}

		dest := filepath.Join(scratchDir, strings.TrimSuffix(filepath.Base(path), ext))
		if err := os.MkdirAll(dest, 0o755); err != nil {
			warnings = append(warnings, fmt.Sprintf("texture: mkdir for %s: %v", path, err))
			return nil
		}
		if err := archiver.Unarchive(path, dest); err != nil {
			warnings = append(warnings, fmt.Sprintf("texture: skipping malformed archive %s: %v", path, err))
		}
		return nil
	})
	if err != nil {
		return warnings, err
	}
	return warnings, nil
}
