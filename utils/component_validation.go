package utils

import "github.com/pkg/errors"

// ValidateBaudRate reports whether baudRate is one of validBaudRates.
func ValidateBaudRate(validBaudRates []uint, baudRate int) bool {
	for _, val := range validBaudRates {
		if baudRate >= 0 && val == uint(baudRate) {
			return true
		}
	}
	return false
}

// ValidateIntRange returns an error naming field when v lies outside [lo, hi].
func ValidateIntRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return errors.Errorf("%s must be between %d and %d, got %d", field, lo, hi, v)
	}
	return nil
}
