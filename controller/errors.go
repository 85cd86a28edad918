package controller

import "github.com/pkg/errors"

var (
	// ErrUnknownConfiguration is returned for a configuration whose kind specific payload the
	// controller cannot route to a vendor.
	ErrUnknownConfiguration = errors.New("Unknown tracker configuration type")
	// ErrNoDriver is returned when no driver is registered for a known kind.
	ErrNoDriver = errors.New("no driver registered")
)
