package model

import "fmt"

// Region tags the ingestion source a posting came from.
type Region string

const (
	RegionFI          Region = "FI"
	RegionEMEA        Region = "EMEA"
	RegionUnspecified Region = "unspecified"
)

// ParseRegion converts a raw string to a Region.
func ParseRegion(s string) (Region, error) {
	r := Region(s)
	switch r {
	case RegionFI, RegionEMEA, RegionUnspecified:
		return r, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}
