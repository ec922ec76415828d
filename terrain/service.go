package terrain

import (
	"context"
	"fmt"

	"github.com/GrainArc/sceneryforge/geoutil"
	"github.com/GrainArc/sceneryforge/tiling"
)

// SampleMethod selects between the two altitude-sampling strategies
// named in spec §4.5.
type SampleMethod int

const (
	// SampleRaycast casts a ray along the ECEF Z axis, testing every
	// triangle in turn (there is no AABB pruning), and returns the
	// highest hit's ECEF Z (the original implementation's method).
	SampleRaycast SampleMethod = iota
	// SampleInterpolate barycentrically interpolates altitude within
	// the containing lat/lon triangle, falling back to the nearest
	// vertex (the refined implementation's method).
	SampleInterpolate
)

// Stub is the zero-configuration ElevationSource: it always returns
// 0, matching spec §4.5 ("a stub that returns 0 is acceptable when no
// terrain source is configured").
type Stub struct{}

// GetElevation implements placement.ElevationSource.
func (Stub) GetElevation(lat, lon float64) (float64, error) { return 0, nil }

// RecordingStub returns a fixed Elevation and records every call, for use in tests
// that verify the IsAboveAGL rewrite invariant (spec §8) against a
// provider whose calls are observable.
type RecordingStub struct {
	Elevation float64
	Calls     []struct{ Lat, Lon float64 }
}

func (s *RecordingStub) GetElevation(lat, lon float64) (float64, error) {
	s.Calls = append(s.Calls, struct{ Lat, Lon float64 }{lat, lon})
	return s.Elevation, nil
}

// Service is the default TerrainService (spec §4.5): resolve tile,
// fetch+decode BTG meshes through Provider, cache them, and sample
// altitude by the configured Method.
type Service struct {
	Provider Provider
	Cache    *TileCache
	Method   SampleMethod
	Persist  *PersistentStore // optional; nil disables cross-run persistence
}

// NewService constructs a Service backed by provider, with an
// in-memory-only cache and lat/lon-interpolation sampling.
func NewService(provider Provider) *Service {
	return &Service{Provider: provider, Cache: NewTileCache(), Method: SampleInterpolate}
}

// GetElevation implements placement.ElevationSource; the airport
// decoder reaches it only through placement.Decode for embedded
// placements.
func (s *Service) GetElevation(lat, lon float64) (float64, error) {
	idx := tiling.GetTileIndex(lat, lon)
	meshes, err := s.meshesForTile(context.Background(), uint32(idx), lat, lon)
	if err != nil {
		return 0, err
	}
	if len(meshes) == 0 {
		return 0, nil
	}

	queryECEF := geoutil.ToECEF(lat, lon, 0)
	best := -1e18
	found := false
	for _, m := range meshes {
		alt, ok := sampleMesh(m, queryECEF, lat, lon, s.Method)
		if ok && alt > best {
			best, found = alt, true
		}
	}
	if !found {
		return 0, nil
	}
	return best, nil
}

func (s *Service) meshesForTile(ctx context.Context, tileIndex uint32, lat, lon float64) ([]*Mesh, error) {
	if meshes, ok := s.Cache.Get(tileIndex); ok {
		return meshes, nil
	}
	if s.Persist != nil {
		if meshes, ok := s.Persist.Load(tileIndex); ok {
			s.Cache.Set(tileIndex, meshes)
			return meshes, nil
		}
	}
	if !s.Cache.TryLock(tileIndex) {
		// Another goroutine is fetching this tile; the caller falls
		// back to an uncached zero-elevation answer rather than block,
		// since GetElevation has no cancellation of its own (spec §4.5).
		return nil, nil
	}
	defer s.Cache.Unlock(tileIndex)

	if s.Provider == nil {
		return nil, nil
	}
	lines, err := s.Provider.FetchIndex(ctx, tileIndex, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}

	var meshes []*Mesh
	for _, line := range lines {
		raw, err := s.Provider.FetchBTG(ctx, tileIndex, lat, lon, line.BtgName)
		if err != nil {
			continue // dropped without logging; this tile's other BTGs still count
		}
		mesh, decodeErr := DecodeBTG(raw)
		if mesh != nil && len(mesh.Triangles) > 0 {
			meshes = append(meshes, mesh)
		}
		_ = decodeErr // partial meshes are usable; the error is diagnostic only
	}

	s.Cache.Set(tileIndex, meshes)
	if s.Persist != nil {
		s.Persist.Save(tileIndex, meshes)
	}
	return meshes, nil
}

func sampleMesh(m *Mesh, query geoutil.ECEF, lat, lon float64, method SampleMethod) (float64, bool) {
	if len(m.Vertices) == 0 || len(m.Triangles) == 0 {
		return 0, false
	}
	switch method {
	case SampleRaycast:
		return sampleRaycast(m, query)
	default:
		return sampleInterpolate(m, lat, lon)
	}
}

// sampleRaycast finds the triangle whose XY footprint (in the mesh's
// local ECEF-minus-center frame) contains the query point and returns
// the highest hit's ECEF Z (hit Z plus the sphere center's Z). Every
// triangle is tested; there is no AABB pruning.
func sampleRaycast(m *Mesh, query geoutil.ECEF) (float64, bool) {
	qx := query.X - m.SphereCenter.X
	qy := query.Y - m.SphereCenter.Y

	bestZ := 0.0
	found := false
	for _, tri := range m.Triangles {
		if int(tri[0]) >= len(m.Vertices) || int(tri[1]) >= len(m.Vertices) || int(tri[2]) >= len(m.Vertices) {
			continue
		}
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		u, v, w, ok := barycentric2D(qx, qy, a.X, a.Y, b.X, b.Y, c.X, c.Y)
		if !ok {
			continue
		}
		z := u*a.Z + v*b.Z + w*c.Z
		if !found || z > bestZ {
			bestZ, found = z, true
		}
	}
	if !found {
		return 0, false
	}
	return bestZ + m.SphereCenter.Z, true
}

// sampleInterpolate projects every triangle to (lat, lon, alt) and
// barycentrically interpolates within the one containing the query
// point, falling back to the nearest vertex (spec §4.5).
func sampleInterpolate(m *Mesh, lat, lon float64) (float64, bool) {
	type vertexGeo struct{ lat, lon, alt float64 }
	geo := make([]vertexGeo, len(m.Vertices))
	for i, v := range m.Vertices {
		la, lo, al := geoutil.ToGeodetic(geoutil.ECEF{
			X: v.X + m.SphereCenter.X,
			Y: v.Y + m.SphereCenter.Y,
			Z: v.Z + m.SphereCenter.Z,
		})
		geo[i] = vertexGeo{la, lo, al}
	}

	for _, tri := range m.Triangles {
		if int(tri[0]) >= len(geo) || int(tri[1]) >= len(geo) || int(tri[2]) >= len(geo) {
			continue
		}
		a, b, c := geo[tri[0]], geo[tri[1]], geo[tri[2]]
		u, v, w, ok := barycentric2D(lon, lat, a.lon, a.lat, b.lon, b.lat, c.lon, c.lat)
		if !ok {
			continue
		}
		return u*a.alt + v*b.alt + w*c.alt, true
	}

	if len(geo) == 0 {
		return 0, false
	}
	best := 0
	bestDist := 1e18
	for i, g := range geo {
		d := (g.lat-lat)*(g.lat-lat) + (g.lon-lon)*(g.lon-lon)
		if d < bestDist {
			bestDist, best = d, i
		}
	}
	return geo[best].alt, true
}

// barycentric2D returns the barycentric weights of point (px,py) in
// triangle (ax,ay)-(bx,by)-(cx,cy), and whether the point lies inside
// (all weights in [0,1]).
func barycentric2D(px, py, ax, ay, bx, by, cx, cy float64) (u, v, w float64, inside bool) {
	d := (by-cy)*(ax-cx) + (cx-bx)*(ay-cy)
	if d == 0 {
		return 0, 0, 0, false
	}
	u = ((by-cy)*(px-cx) + (cx-bx)*(py-cy)) / d
	v = ((cy-ay)*(px-cx) + (ax-cx)*(py-cy)) / d
	w = 1 - u - v
	inside = u >= -1e-9 && v >= -1e-9 && w >= -1e-9
	return u, v, w, inside
}
