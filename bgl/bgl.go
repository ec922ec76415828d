// Package bgl walks a single MSFS BGL (binary scenery) file: it
// validates the header, iterates the top-level record table, and
// yields the subrecord payloads of the record types the pipeline
// cares about. Grounded on the header/directory-table/lump pattern
// used throughout the retrieval pack's binary container readers
// (e.g. a WAD2 header + lump table read via encoding/binary).
package bgl

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/GrainArc/sceneryforge/internal/logging"
)

// RecordType identifies a top-level BGL record.
type RecordType uint32

const (
	RecordAirport       RecordType = 0x0003
	RecordSceneryObject RecordType = 0x0025
	RecordModelData     RecordType = 0x002B
)

var interestingRecords = map[RecordType]bool{
	RecordAirport:       true,
	RecordSceneryObject: true,
	RecordModelData:     true,
}

var (
	headerMagicA = [4]byte{0x01, 0x02, 0x92, 0x19}
	headerMagicB = [4]byte{0x03, 0x18, 0x05, 0x08}
)

// ErrInvalidHeader is returned when a BGL's magic bytes don't match.
type ErrInvalidHeader struct {
	Offset int
}

func (e ErrInvalidHeader) Error() string {
	return fmt.Sprintf("bgl: invalid header magic at offset 0x%X", e.Offset)
}

// ErrTruncatedRecord is returned when a declared subrecord size exceeds
// the remaining bytes in the file.
type ErrTruncatedRecord struct {
	Offset, Size, Remaining int
}

func (e ErrTruncatedRecord) Error() string {
	return fmt.Sprintf("bgl: truncated record at offset 0x%X: declared size %d, only %d bytes remain", e.Offset, e.Size, e.Remaining)
}

const (
	recordTableOffset = 0x38
	recordEntrySize   = 16
	subEntrySize      = 16
)

type recordEntry struct {
	Type                   uint32
	SubrecordCount         uint32
	SubrecordSectionOffset uint32
	RecordSize             uint32
}

// Subrecord is a single decoded subrecord payload, tagged with the
// parent record's type and its file offset. The subrecord's own
// leading 2-byte id is not stored separately; callers read it from
// the head of Payload.
type Subrecord struct {
	ParentType RecordType
	Offset     int
	Payload    []byte
}

// Walker iterates the record and subrecord tables of one BGL file.
type Walker struct {
	data []byte
}

// New validates the BGL header and constructs a Walker over data.
func New(data []byte) (*Walker, error) {
	if len(data) < recordTableOffset+4 {
		return nil, ErrInvalidHeader{Offset: 0}
	}
	if !bytes.Equal(data[0:4], headerMagicA[:]) {
		return nil, ErrInvalidHeader{Offset: 0}
	}
	if !bytes.Equal(data[0x10:0x14], headerMagicB[:]) {
		return nil, ErrInvalidHeader{Offset: 0x10}
	}
	return &Walker{data: data}, nil
}

func (w *Walker) recordCount() uint32 {
	return binary.LittleEndian.Uint32(w.data[0x14:0x18])
}

// Walk visits every top-level record of interest (Airport,
// SceneryObject, ModelData), calling fn once per decoded subrecord.
// Records of other types are skipped silently; subrecords whose
// declared length runs past the file are skipped with a logged warning
// rather than aborting the whole file (spec §7: TruncatedRecord is
// non-fatal).
func (w *Walker) Walk(onWarning func(error), fn func(Subrecord) error) error {
	count := w.recordCount()
	base := recordTableOffset

	for i := uint32(0); i < count; i++ {
		off := base + int(i)*recordEntrySize
		if off+recordEntrySize > len(w.data) {
			onWarning(logging.NewDiagnosticError(logging.KindCorruptElement, "", off, "record_table_entry",
				fmt.Errorf("bgl: record table entry %d out of bounds", i)))
			break
		}
		rec := recordEntry{
			Type:                   binary.LittleEndian.Uint32(w.data[off : off+4]),
			SubrecordCount:         binary.LittleEndian.Uint32(w.data[off+4 : off+8]),
			SubrecordSectionOffset: binary.LittleEndian.Uint32(w.data[off+8 : off+12]),
			RecordSize:             binary.LittleEndian.Uint32(w.data[off+12 : off+16]),
		}
		rt := RecordType(rec.Type)
		if !interestingRecords[rt] {
			continue
		}
		if err := w.walkSubrecords(rt, rec, onWarning, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) walkSubrecords(rt RecordType, rec recordEntry, onWarning func(error), fn func(Subrecord) error) error {
	base := int(rec.SubrecordSectionOffset)
	for i := uint32(0); i < rec.SubrecordCount; i++ {
		entryOff := base + int(i)*subEntrySize
		if entryOff+16 > len(w.data) {
			onWarning(logging.NewDiagnosticError(logging.KindCorruptElement, "", entryOff, "subrecord_table_entry",
				fmt.Errorf("bgl: subrecord index entry out of bounds at 0x%X", entryOff)))
			return nil
		}
		subOffset := int(binary.LittleEndian.Uint32(w.data[entryOff+8 : entryOff+12]))
		size := int(binary.LittleEndian.Uint32(w.data[entryOff+12 : entryOff+16]))

		if subOffset < 0 || subOffset+size > len(w.data) {
			err := ErrTruncatedRecord{Offset: subOffset, Size: size, Remaining: len(w.data) - subOffset}
			onWarning(logging.NewDiagnosticError(logging.KindTruncatedRecord, "", subOffset, fmt.Sprintf("record_type_0x%X", rt), err))
			continue
		}

		payload := w.data[subOffset : subOffset+size]
		if err := fn(Subrecord{ParentType: rt, Offset: subOffset, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}
