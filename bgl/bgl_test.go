package bgl

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/internal/logging"
)

// buildBGL assembles a minimal valid BGL byte stream with a single
// record of type rt holding one subrecord whose payload is given.
func buildBGL(rt RecordType, payload []byte) []byte {
	subSectionOff := recordTableOffset + recordEntrySize // one record entry
	payloadOff := subSectionOff + subEntrySize            // one subrecord entry

	buf := make([]byte, payloadOff+len(payload))
	copy(buf[0:4], headerMagicA[:])
	copy(buf[0x10:0x14], headerMagicB[:])
	binary.LittleEndian.PutUint32(buf[0x14:0x18], 1) // record count

	recOff := recordTableOffset
	binary.LittleEndian.PutUint32(buf[recOff:recOff+4], uint32(rt))
	binary.LittleEndian.PutUint32(buf[recOff+4:recOff+8], 1) // subrecord count
	binary.LittleEndian.PutUint32(buf[recOff+8:recOff+12], uint32(subSectionOff))
	binary.LittleEndian.PutUint32(buf[recOff+12:recOff+16], uint32(len(payload)))

	subOff := subSectionOff
	binary.LittleEndian.PutUint32(buf[subOff+8:subOff+12], uint32(payloadOff))
	binary.LittleEndian.PutUint32(buf[subOff+12:subOff+16], uint32(len(payload)))

	copy(buf[payloadOff:], payload)
	return buf
}

func TestNewRejectsBadMagic(t *testing.T) {
	buf := buildBGL(RecordSceneryObject, []byte{1, 2, 3, 4})
	buf[0] = 0xFF // corrupt the primary magic

	_, err := New(buf)
	require.Error(t, err)
	require.IsType(t, ErrInvalidHeader{}, err)
}

func TestNewRejectsTooShortBuffer(t *testing.T) {
	_, err := New(make([]byte, 4))
	require.Error(t, err)
}

func TestWalkVisitsOnlyInterestingRecordTypes(t *testing.T) {
	buf := buildBGL(RecordType(0x9999), []byte{1, 2, 3, 4})
	w, err := New(buf)
	require.NoError(t, err)

	visited := 0
	err = w.Walk(func(error) {}, func(Subrecord) error {
		visited++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, visited, "uninteresting record types must be skipped entirely")
}

func TestWalkYieldsSubrecordPayload(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	buf := buildBGL(RecordSceneryObject, payload)
	w, err := New(buf)
	require.NoError(t, err)

	var got []byte
	err = w.Walk(func(error) {}, func(sub Subrecord) error {
		got = sub.Payload
		require.Equal(t, RecordSceneryObject, sub.ParentType)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWalkTreatsOutOfBoundsSubrecordAsWarningNotFatal(t *testing.T) {
	buf := buildBGL(RecordSceneryObject, []byte{1, 2, 3, 4})

	// Corrupt the declared subrecord size so it runs past the buffer.
	subOff := recordTableOffset + recordEntrySize
	binary.LittleEndian.PutUint32(buf[subOff+12:subOff+16], 0xFFFFFF)

	w, err := New(buf)
	require.NoError(t, err)

	var warnings []error
	visited := 0
	err = w.Walk(func(e error) { warnings = append(warnings, e) }, func(Subrecord) error {
		visited++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, visited)
	require.Len(t, warnings, 1)

	var diag *logging.DiagnosticError
	require.ErrorAs(t, warnings[0], &diag)
	require.Equal(t, logging.KindTruncatedRecord, diag.Kind)
	require.IsType(t, ErrTruncatedRecord{}, diag.Err)
}
