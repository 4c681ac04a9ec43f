package features

import (
	"path/filepath"
	"slices"
	"strings"
)

// Groups lists the accepted grade groups; a group's label is its index.
var Groups = []string{"OP", "BOP", "BOPF"}

var regionNames = map[string]string{
	"DI": "Dimbula Region",
	"UV": "Uva Region",
	"NU": "Nuwara Eliya Region",
	"SB": "Sabaragamuwa Region",
	"KA": "Kandy Region",
	"RU": "Ruhuna Region",
}

// DefaultRegion is used for region codes without a mapping.
const DefaultRegion = "Udapussellawa Region"

// Label describes a sample parsed from a REGION_GROUP_xxx file name.
type Label struct {
	RegionCode string `json:"region_label"`
	Region     string `json:"region"`
	Group      string `json:"group"`
	GroupLabel int    `json:"group_label"`
}

// RegionName maps a region code to its display name.
func RegionName(code string) string {
	if name, ok := regionNames[code]; ok {
		return name
	}
	return DefaultRegion
}

// ParseLabel extracts the region and group from a file name such as
// NU_OP_001.jpg. It reports false when the name has fewer than two
// underscore-separated parts or the group is not one of Groups.
func ParseLabel(path string) (Label, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return Label{}, false
	}

	code, group := parts[0], parts[1]
	groupID := slices.Index(Groups, group)
	if groupID < 0 {
		return Label{}, false
	}

	return Label{
		RegionCode: code,
		Region:     RegionName(code),
		Group:      group,
		GroupLabel: groupID,
	}, true
}
