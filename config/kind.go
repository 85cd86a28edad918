package config

import (
	"sort"

	"github.com/samber/lo"
)

// Kind names a family of tracker hardware.
type Kind string

// The tracker kinds a configuration may name.
const (
	KindPolarisVicra   Kind = "polaris_vicra"
	KindPolarisSpectra Kind = "polaris_spectra"
	KindPolarisHybrid  Kind = "polaris_hybrid"
	KindAurora         Kind = "aurora"
	KindMicron         Kind = "micron"
	KindAscension      Kind = "ascension"
	KindInfiniTrack    Kind = "infinitrack"
	KindSimulated      Kind = "simulated"
)

// KindInfo carries the manufacturer constants of a kind.
type KindInfo struct {
	// MaxFrequency is the manufacturer's highest polling rate in Hz.
	MaxFrequency float64
	// NeedsSerial is set for kinds talking over a serial channel.
	NeedsSerial     bool
	DefaultBaudRate int
}

var kindTable = map[Kind]KindInfo{
	KindPolarisVicra:   {MaxFrequency: 20, NeedsSerial: true, DefaultBaudRate: 115200},
	KindPolarisSpectra: {MaxFrequency: 60, NeedsSerial: true, DefaultBaudRate: 115200},
	KindPolarisHybrid:  {MaxFrequency: 60, NeedsSerial: true, DefaultBaudRate: 115200},
	KindAurora:         {MaxFrequency: 40, NeedsSerial: true, DefaultBaudRate: 115200},
	KindMicron:         {MaxFrequency: 48},
	KindAscension:      {MaxFrequency: 240, NeedsSerial: true, DefaultBaudRate: 115200},
	KindInfiniTrack:    {MaxFrequency: 60},
	KindSimulated:      {MaxFrequency: 1000},
}

// ValidBaudRates are the rates the serial trackers accept.
var ValidBaudRates = []uint{9600, 14400, 19200, 38400, 57600, 115200, 921600, 1228739}

// Info returns the constants for k. ok is false for unknown kinds.
func (k Kind) Info() (info KindInfo, ok bool) {
	info, ok = kindTable[k]
	return info, ok
}

// IsPolaris reports whether k is one of the Polaris variants.
func (k Kind) IsPolaris() bool {
	return k == KindPolarisVicra || k == KindPolarisSpectra || k == KindPolarisHybrid
}

// Kinds returns every known kind, sorted.
func Kinds() []Kind {
	kinds := lo.Keys(kindTable)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
