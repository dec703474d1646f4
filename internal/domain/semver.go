package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SemanticVersion is an immutable major.minor.patch triple. Bumps return a new value.
type SemanticVersion struct {
	Major int
	Minor int
	Patch int
}

// InitialVersion is the version every template starts at.
func InitialVersion() SemanticVersion {
	return SemanticVersion{Major: 1, Minor: 0, Patch: 0}
}

// NextPatch increments patch only.
func (v SemanticVersion) NextPatch() SemanticVersion {
	return SemanticVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// NextMinor increments minor and resets patch.
func (v SemanticVersion) NextMinor() SemanticVersion {
	return SemanticVersion{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// Compare returns -1, 0 or 1 ordering by major, then minor, then patch.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	return CompareVersions(v, other)
}

// CompareVersions orders a against b.
func CompareVersions(a, b SemanticVersion) int {
	switch {
	case a.Major != b.Major:
		return cmpInt(a.Major, b.Major)
	case a.Minor != b.Minor:
		return cmpInt(a.Minor, b.Minor)
	default:
		return cmpInt(a.Patch, b.Patch)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSemanticVersion parses the canonical "major.minor.patch" form.
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemanticVersion{}, fmt.Errorf("invalid semantic version %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return SemanticVersion{}, fmt.Errorf("invalid semantic version %q", s)
		}
		nums[i] = n
	}
	return SemanticVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MarshalText encodes the version in its canonical string form.
func (v SemanticVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes the canonical string form.
func (v *SemanticVersion) UnmarshalText(b []byte) error {
	parsed, err := ParseSemanticVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
