package terrain

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// StgLine is one parsed line of a tile's tile.stg index ("OBJECT
// <name>.btg" or "OBJECT_BASE <name>.btg", spec §6 wire protocol).
type StgLine struct {
	Directive string
	BtgName   string
}

// Provider fetches the raw artifacts for one FlightGear tile: the
// text index (tile.stg) and the gzipped BTG blob named by each of its
// lines. Implementations may be local-filesystem (a TerraSync mirror)
// or HTTP.
type Provider interface {
	FetchIndex(ctx context.Context, tileIndex uint32, lat, lon float64) ([]StgLine, error)
	FetchBTG(ctx context.Context, tileIndex uint32, lat, lon float64, btgName string) ([]byte, error)
}

// dirComponent renders FlightGear's directory naming convention, e.g.
// "e007n45" for a coordinate rounded down to a multiple of round
// degrees. round is 10 for the outer directory and 1 for the inner
// one, per spec §6's wire protocol path template.
func dirComponent(lat, lon float64, round int) string {
	lonBase := int(math.Floor(lon/float64(round))) * round
	latBase := int(math.Floor(lat/float64(round))) * round

	lonHemi, lonAbs := "e", lonBase
	if lonBase < 0 {
		lonHemi, lonAbs = "w", -lonBase
	}
	latHemi, latAbs := "n", latBase
	if latBase < 0 {
		latHemi, latAbs = "s", -latBase
	}
	return fmt.Sprintf("%s%03d%s%02d", lonHemi, lonAbs, latHemi, latAbs)
}

func tilePath(tileIndex uint32, lat, lon float64) string {
	return path.Join("Terrain", dirComponent(lat, lon, 10), dirComponent(lat, lon, 1), fmt.Sprintf("%d", tileIndex))
}

func parseStg(r io.Reader) ([]StgLine, error) {
	var out []StgLine
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] != "OBJECT" && fields[0] != "OBJECT_BASE" {
			continue
		}
		out = append(out, StgLine{Directive: fields[0], BtgName: fields[1]})
	}
	return out, sc.Err()
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("terrain: %w: not a valid gzip stream", ErrMalformedHeader)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// LocalProvider reads tile artifacts from a TerraSync-style directory
// tree on disk (spec §6: "an alternative provider may read from a
// local TerraSync directory").
type LocalProvider struct {
	Root string
}

func (p *LocalProvider) FetchIndex(_ context.Context, tileIndex uint32, lat, lon float64) ([]StgLine, error) {
	full := filepath.Join(p.Root, filepath.FromSlash(tilePath(tileIndex, lat, lon))+".stg")
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("terrain: opening %s: %w", full, err)
	}
	defer f.Close()
	return parseStg(f)
}

func (p *LocalProvider) FetchBTG(_ context.Context, tileIndex uint32, lat, lon float64, btgName string) ([]byte, error) {
	dir := filepath.Join(p.Root, filepath.FromSlash(path.Join("Terrain", dirComponent(lat, lon, 10), dirComponent(lat, lon, 1))))
	full := filepath.Join(dir, btgName+".gz")
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("terrain: reading %s: %w", full, err)
	}
	return gunzip(raw)
}

// HTTPProvider fetches tile artifacts over HTTP from a base URL,
// mirroring the teacher's tile_proxy tuned client (short timeouts so
// one unreachable server does not stall the whole conversion).
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPProvider constructs an HTTPProvider with a sane default
// timeout.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, Client: &http.Client{Timeout: 20 * time.Second}}
}

func (p *HTTPProvider) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("terrain: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("terrain: %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *HTTPProvider) FetchIndex(ctx context.Context, tileIndex uint32, lat, lon float64) ([]StgLine, error) {
	url := fmt.Sprintf("%s/%s.stg", strings.TrimRight(p.BaseURL, "/"), tilePath(tileIndex, lat, lon))
	body, err := p.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseStg(bytes.NewReader(body))
}

func (p *HTTPProvider) FetchBTG(ctx context.Context, tileIndex uint32, lat, lon float64, btgName string) ([]byte, error) {
	dir := path.Join("Terrain", dirComponent(lat, lon, 10), dirComponent(lat, lon, 1))
	url := fmt.Sprintf("%s/%s/%s.gz", strings.TrimRight(p.BaseURL, "/"), dir, btgName)
	raw, err := p.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return gunzip(raw)
}
