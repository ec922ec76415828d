package terrain

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// elevationRow is the gorm model backing the elevation_tiles table
// (spec SPEC_FULL §4.16): a tile index maps to a brotli-compressed gob
// encoding of its decoded meshes, so a warm restart skips both the
// network fetch and the BTG decode.
type elevationRow struct {
	TileIndex uint32 `gorm:"primaryKey"`
	Blob      []byte
}

func (elevationRow) TableName() string { return "elevation_tiles" }

// PersistentStore is the optional SQLite-backed cross-run cache for
// decoded terrain meshes (spec §4.16). Only the elevation_tiles table
// is migrated here; the texture registry opens its own handle through
// texture.OpenPersistentDB.
type PersistentStore struct {
	db *gorm.DB
}

// OpenPersistentStore opens (creating if absent) the cache database at
// path. An empty path disables persistence and returns (nil, nil).
func OpenPersistentStore(path string) (*PersistentStore, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("terrain: opening cache db: %w", err)
	}
	if err := db.AutoMigrate(&elevationRow{}); err != nil {
		return nil, fmt.Errorf("terrain: migrating cache db: %w", err)
	}
	return &PersistentStore{db: db}, nil
}

// Load returns the cached meshes for tileIndex, if present and
// decodable. A decode failure is treated as a cache miss.
func (s *PersistentStore) Load(tileIndex uint32) ([]*Mesh, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	var row elevationRow
	if err := s.db.First(&row, "tile_index = ?", tileIndex).Error; err != nil {
		return nil, false
	}
	meshes, err := decodeMeshBlob(row.Blob)
	if err != nil {
		return nil, false
	}
	return meshes, true
}

// Save persists meshes for tileIndex, overwriting any prior entry.
// Failures are silently ignored: persistence is a warm-start
// optimization, never a correctness requirement.
func (s *PersistentStore) Save(tileIndex uint32, meshes []*Mesh) {
	if s == nil || s.db == nil {
		return
	}
	blob, err := encodeMeshBlob(meshes)
	if err != nil {
		return
	}
	s.db.Save(&elevationRow{TileIndex: tileIndex, Blob: blob})
}

// gobMesh mirrors Mesh/Triangle in a form gob can encode without
// exporting encoding concerns into the public Mesh type.
type gobMesh struct {
	Vertices     []Vec3
	Triangles    [][3]uint32
	SphereCenter Vec3
	SphereRadius float64
}

func encodeMeshBlob(meshes []*Mesh) ([]byte, error) {
	gobs := make([]gobMesh, len(meshes))
	for i, m := range meshes {
		tris := make([][3]uint32, len(m.Triangles))
		for j, t := range m.Triangles {
			tris[j] = [3]uint32(t)
		}
		gobs[i] = gobMesh{Vertices: m.Vertices, Triangles: tris, SphereCenter: m.SphereCenter, SphereRadius: m.SphereRadius}
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(gobs); err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	// A 4-byte length of the uncompressed gob precedes the brotli
	// stream; decodeMeshBlob skips it without checking it.
	if err := binary.Write(&compressed, binary.LittleEndian, uint32(raw.Len())); err != nil {
		return nil, err
	}
	bw := brotli.NewWriter(&compressed)
	if _, err := bw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

func decodeMeshBlob(blob []byte) ([]*Mesh, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("terrain: cache blob too short")
	}
	br := brotli.NewReader(bytes.NewReader(blob[4:]))
	raw, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	var gobs []gobMesh
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&gobs); err != nil {
		return nil, err
	}

	meshes := make([]*Mesh, len(gobs))
	for i, g := range gobs {
		tris := make([]Triangle, len(g.Triangles))
		for j, t := range g.Triangles {
			tris[j] = Triangle(t)
		}
		meshes[i] = &Mesh{Vertices: g.Vertices, Triangles: tris, SphereCenter: g.SphereCenter, SphereRadius: g.SphereRadius}
	}
	return meshes, nil
}
