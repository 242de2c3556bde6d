package geo

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed zips.yaml
var zipsYAML []byte

// zipTable is the static postal-code coordinate table for the primary
// service region. Loaded once at package init; treated as immutable.
var zipTable = mustLoadZipTable()

func mustLoadZipTable() map[string]Coordinates {
	table := make(map[string]Coordinates)
	if err := yaml.Unmarshal(zipsYAML, &table); err != nil {
		panic("geo: invalid embedded zip table: " + err.Error())
	}
	return table
}

// lookupZip returns coordinates for a postal code from the static table.
func lookupZip(postalCode string) (Coordinates, bool) {
	coords, ok := zipTable[strings.TrimSpace(postalCode)]
	return coords, ok
}
