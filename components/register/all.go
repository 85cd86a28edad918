// Package register registers all tracker drivers.
package register

import (
	// register drivers.
	_ "go.igtrack.org/tracking/components/tracker/fake"
)
