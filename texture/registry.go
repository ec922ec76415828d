package texture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// textureRow is the gorm model backing the optional on-disk texture
// registry (spec SPEC_FULL §4.16), mirroring the teacher's
// config.InitDatabase / texture.db pattern.
type textureRow struct {
	SourceHash string `gorm:"primaryKey"`
	DestName   string `gorm:"not null"`
}

func (textureRow) TableName() string { return "textures" }

// Registry copies texture files into a tile's output directory,
// deduplicating by content hash and disambiguating filename
// collisions with a numeric suffix (spec §3's "uniqueness enforcement
// (suffix disambiguation)").
type Registry struct {
	mu       sync.Mutex
	byHash   map[string]string // source content hash -> dest filename already used in this dir
	usedName map[string]bool   // dest filenames already claimed in this dir

	db *gorm.DB // optional cross-run persistence; nil disables it
}

// NewRegistry creates an empty, per-tile-directory texture registry.
func NewRegistry() *Registry {
	return &Registry{byHash: make(map[string]string), usedName: make(map[string]bool)}
}

// OpenPersistentDB opens (creating if absent) the SQLite cache
// database used to skip re-hashing textures across runs. Failure to
// open is non-fatal: the caller falls back to in-memory-only dedup.
func OpenPersistentDB(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&textureRow{}); err != nil {
		return nil, err
	}
	return db, nil
}

// WithDB attaches a persistence handle (from OpenPersistentDB) to the
// registry. A nil db is a valid no-op.
func (r *Registry) WithDB(db *gorm.DB) *Registry {
	r.db = db
	return r
}

// CopyInto copies srcPath into destDir, returning the destination
// filename actually used (which may carry a disambiguating suffix if
// a same-named-but-different file was already copied into destDir).
// Copying is idempotent: repeated calls with the same content return
// the same destination without re-copying.
func (r *Registry) CopyInto(srcPath, destDir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash, err := hashFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("texture: hashing %s: %w", srcPath, err)
	}

	if dest, ok := r.byHash[hash]; ok {
		return dest, nil
	}
	if r.db != nil {
		var row textureRow
		if err := r.db.First(&row, "source_hash = ?", hash).Error; err == nil {
			destPath := filepath.Join(destDir, row.DestName)
			if _, statErr := os.Stat(destPath); statErr == nil {
				r.byHash[hash] = row.DestName
				r.usedName[row.DestName] = true
				return row.DestName, nil
			}
		}
	}

	name := disambiguate(filepath.Base(srcPath), r.usedName)
	destPath := filepath.Join(destDir, name)

	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		if err := copyFile(srcPath, destPath); err != nil {
			return "", fmt.Errorf("texture: copy failure %s -> %s: %w", srcPath, destPath, err)
		}
	}
	// Destination already exists (idempotent copy, spec §4.11): reuse it.

	r.byHash[hash] = name
	r.usedName[name] = true
	if r.db != nil {
		r.db.Save(&textureRow{SourceHash: hash, DestName: name})
	}
	return name, nil
}

// disambiguate returns base if unused, otherwise base with a
// "_2", "_3", ... suffix inserted before the extension.
func disambiguate(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !used[candidate] {
			return candidate
		}
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
