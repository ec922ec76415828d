package texture

import (
	"fmt"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"

	"github.com/GrainArc/sceneryforge/scene"
)

// satelliteClient mirrors the teacher's tile_proxy tuned HTTP client:
// short timeouts so a single unreachable tile server cannot stall an
// entire conversion run.
var satelliteClient = &http.Client{Timeout: 15 * time.Second}

// FetchGroundTexture retrieves the WebP satellite basemap tile for a
// tile index from baseURL, decodes it, and re-encodes it as
// ground_<tileIndex>.png inside destDir, returning the PNG's path. A non-nil error means the
// ground-projected backdrop should simply be omitted (spec §4.18: its
// absence must never fail the tile's conversion).
func FetchGroundTexture(baseURL string, tileIndex uint32, destDir string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("texture: satellite root not configured")
	}
	url := fmt.Sprintf("%s/%d.webp", baseURL, tileIndex)

	resp, err := satelliteClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("texture: fetching satellite tile %d: %w", tileIndex, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("texture: satellite tile %d returned status %d", tileIndex, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("texture: reading satellite tile %d: %w", tileIndex, err)
	}
	img, err := webp.DecodeRGBA(body)
	if err != nil {
		return "", fmt.Errorf("texture: decoding satellite tile %d: %w", tileIndex, err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("texture: creating satellite dest dir: %w", err)
	}
	pngPath := filepath.Join(destDir, fmt.Sprintf("ground_%d.png", tileIndex))
	f, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("texture: creating %s: %w", pngPath, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("texture: encoding %s: %w", pngPath, err)
	}
	return pngPath, nil
}

// BuildGroundMesh synthesizes a flat quad spanning [-halfExtent,
// halfExtent] on X/Z at y=0, UV-mapped to the full ground texture, for
// appending to a tile's already-assembled neutral scene before it is
// emitted (spec §4.18). The quad uses MSFS's +X-east/+Z-south-ish local convention
// consistent with scene.NeutralScene's other builders.
func BuildGroundMesh(texturePath string, halfExtent float64) *scene.MeshBuilder {
	mb := &scene.MeshBuilder{
		Positions: []scene.Vec3{
			{X: -halfExtent, Y: 0, Z: -halfExtent},
			{X: halfExtent, Y: 0, Z: -halfExtent},
			{X: halfExtent, Y: 0, Z: halfExtent},
			{X: -halfExtent, Y: 0, Z: halfExtent},
		},
		UVs: []scene.Vec2{
			{U: 0, V: 0},
			{U: 1, V: 0},
			{U: 1, V: 1},
			{U: 0, V: 1},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	mb.Material = scene.DefaultMaterial()
	mb.Material.BaseColorTexture = texturePath
	return mb
}
