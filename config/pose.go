package config

import (
	"github.com/golang/geo/r3"

	"go.igtrack.org/tracking/spatialmath"
	"go.igtrack.org/tracking/transform"
)

// PoseConfig is a fixed rigid transform written in a config file. Orientation is an axis angle
// in radians; a missing orientation is the identity.
type PoseConfig struct {
	Translation r3.Vector         `json:"translation"`
	Orientation *spatialmath.R4AA `json:"orientation,omitempty"`
	Error       float64           `json:"error,omitempty"`
}

// Transform returns the pose as a transform that never expires.
func (p *PoseConfig) Transform() transform.Transform {
	if p == nil {
		return transform.Identity()
	}
	rot := spatialmath.IdentityQuat
	if p.Orientation != nil {
		rot = p.Orientation.ToQuat()
	}
	return transform.NewStaticTransform(p.Translation, rot, p.Error)
}
