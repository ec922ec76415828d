package assemble

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/modelindex"
	"github.com/GrainArc/sceneryforge/placement"
)

func TestAssembleTileTruncatesOnAbortAndSave(t *testing.T) {
	a := NewTileAssembler(nil, nil)
	flags := &Flags{AbortAndSave: 1}

	refs := []modelindex.ModelReference{
		{GUID: uuid.New(), SourceFile: "a", ByteOffset: 0, ByteSize: 100},
		{GUID: uuid.New(), SourceFile: "b", ByteOffset: 0, ByteSize: 50},
	}

	res := a.AssembleTile(1, refs, placement.NewIndex(), Origin{}, true, false, flags)
	require.True(t, res.Truncated)
	require.False(t, res.Cancelled)
	require.NotNil(t, res.GltfScene)
	require.Empty(t, res.GltfScene.Meshes, "no model should have been imported once AbortAndSave was already set")
}

func TestAssembleTileAbortsImmediatelyOnAbortAndCancel(t *testing.T) {
	a := NewTileAssembler(nil, nil)
	flags := &Flags{AbortAndCancel: 1}

	refs := []modelindex.ModelReference{{GUID: uuid.New(), SourceFile: "a", ByteOffset: 0, ByteSize: 100}}

	res := a.AssembleTile(1, refs, placement.NewIndex(), Origin{}, true, false, flags)
	require.True(t, res.Cancelled)
	require.False(t, res.Truncated)
}

func TestAssembleTileWithNilFlagsRunsToCompletion(t *testing.T) {
	a := NewTileAssembler(nil, nil)
	res := a.AssembleTile(1, nil, placement.NewIndex(), Origin{}, true, false, nil)
	require.False(t, res.Cancelled)
	require.False(t, res.Truncated)
}
