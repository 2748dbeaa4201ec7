package models

import "fmt"

// Version is the human-facing policy version. Edits bump Minor, approvals
// bump Major and reset Minor.
type Version struct {
	Major int
	Minor int
}

// InitialVersion is the version every new policy starts at.
var InitialVersion = Version{Major: 1, Minor: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1, Minor: 0}
}
