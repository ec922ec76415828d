// Package stg emits the per-tile STG placement line and, when both
// output formats were produced for a tile, the FlightGear PropertyList
// XML model selector that switches between them at runtime (spec
// §4.12).
package stg

import (
	"fmt"
	"os"
)

// Format identifies which files were written for a tile.
type Format int

const (
	FormatGltfOnly Format = iota
	FormatAcOnly
	FormatBoth
)

// angles returns the (heading, pitch, roll) triple the OBJECT_STATIC
// line uses for the tile's chosen format (spec §4.12).
func angles(f Format) (heading, pitch, roll float64) {
	switch f {
	case FormatGltfOnly:
		return 270, 0, 90
	case FormatAcOnly:
		return 90, 0, 0
	default: // FormatBoth: dual-XML selector
		return 0, 0, 90
	}
}

// filenameFor returns the STG line's model filename for the chosen
// format and tile index.
func filenameFor(f Format, tileIndex uint32) string {
	switch f {
	case FormatGltfOnly:
		return fmt.Sprintf("%d.gltf", tileIndex)
	case FormatAcOnly:
		return fmt.Sprintf("%d.ac", tileIndex)
	default:
		return fmt.Sprintf("%d.xml", tileIndex)
	}
}

// WriteLine writes the tile's single-line STG file (spec §4.12):
//
//	OBJECT_STATIC <filename> <lonCenter> <latCenter> <altCenter> <headingDeg> <pitchDeg> <rollDeg>
func WriteLine(path string, tileIndex uint32, f Format, lonCenter, latCenter, altCenter float64) error {
	heading, pitch, roll := angles(f)
	line := fmt.Sprintf("OBJECT_STATIC %s %s %s %s %s %s %s\n",
		filenameFor(f, tileIndex),
		formatInvariant(lonCenter), formatInvariant(latCenter), formatInvariant(altCenter),
		formatInvariant(heading), formatInvariant(pitch), formatInvariant(roll))
	return os.WriteFile(path, []byte(line), 0o644)
}

// formatInvariant renders v with a dot decimal separator regardless
// of locale (spec §4.12: "invariant culture"), which %v already does
// in Go — there is no locale-dependent number formatting in the
// standard library to guard against, unlike .NET's ToString().
func formatInvariant(v float64) string {
	return fmt.Sprintf("%g", v)
}

// XmlModel names the two model files referenced by the dual-format
// selector.
type XmlModel struct {
	AcFile, GltfFile string
}

// WriteSelector writes the FlightGear PropertyList XML that switches
// between the AC3D and glTF models based on the running FlightGear
// version (spec §4.12): two <model> entries, three rotate animations
// (Z+90 for ac, Z+270 and X+90 for gltf), and two select animations
// gated on /sim/version/flightgear == "2024.2.0" (gltf iff equal, ac
// iff not equal).
func WriteSelector(path string, m XmlModel) error {
	const doc = `<?xml version="1.0"?>
<PropertyList>
  <model>
    <path>%s</path>
    <name>ac-model</name>
  </model>
  <model>
    <path>%s</path>
    <name>gltf-model</name>
  </model>
  <animation>
    <type>select</type>
    <object-name>ac-model</object-name>
    <condition>
      <not><equals><property>/sim/version/flightgear</property><value>2024.2.0</value></equals></not>
    </condition>
  </animation>
  <animation>
    <type>select</type>
    <object-name>gltf-model</object-name>
    <condition>
      <equals><property>/sim/version/flightgear</property><value>2024.2.0</value></equals>
    </condition>
  </animation>
  <animation>
    <type>rotate</type>
    <object-name>ac-model</object-name>
    <axis><x>0</x><y>0</y><z>1</z></axis>
    <offset-deg>90</offset-deg>
  </animation>
  <animation>
    <type>rotate</type>
    <object-name>gltf-model</object-name>
    <axis><x>0</x><y>0</y><z>1</z></axis>
    <offset-deg>270</offset-deg>
  </animation>
  <animation>
    <type>rotate</type>
    <object-name>gltf-model</object-name>
    <axis><x>1</x><y>0</y><z>0</z></axis>
    <offset-deg>90</offset-deg>
  </animation>
</PropertyList>
`
	content := fmt.Sprintf(doc, m.AcFile, m.GltfFile)
	return os.WriteFile(path, []byte(content), 0o644)
}
