package enums

import (
	"fmt"
	"strings"
)

// Sphere is the legacy four-way classification of association funds.
type Sphere string

const (
	SphereIdeell    Sphere = "IDEELL"
	SphereZweck     Sphere = "ZWECK"
	SphereVermoegen Sphere = "VERMOEGEN"
	SphereWGB       Sphere = "WGB"
)

var validSpheres = []Sphere{
	SphereIdeell,
	SphereZweck,
	SphereVermoegen,
	SphereWGB,
}

// String implements fmt.Stringer.
func (s Sphere) String() string {
	return string(s)
}

// IsValid reports whether the value is a known Sphere.
func (s Sphere) IsValid() bool {
	for _, candidate := range validSpheres {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSphere converts raw input into a Sphere.
func ParseSphere(value string) (Sphere, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validSpheres {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sphere %q", value)
}
