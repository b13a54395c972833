package elpico

import (
	"encoding/binary"
	"fmt"
)

// SchemaMagic identifies a valid, current-schema persisted block. Any
// stored block whose magic does not match this value is treated as blank
// or foreign and is replaced with DefaultSettings.
const SchemaMagic uint32 = 0x50495A36

// BlockSize is the encoded length of a Settings record, per §6's packed
// little-endian layout: magic(4) + recipeIdx(1) + limitIdx(1) +
// upWear/loWear(4 each) + 6 PID floats(4 each).
const BlockSize = 4 + 1 + 1 + 4 + 4 + 4*6

// PIDTunings is one zone's proportional/integral/derivative gains.
type PIDTunings struct {
	Kp, Ki, Kd float64
}

// DefaultTunings matches the factory-reset and first-boot defaults.
var DefaultTunings = PIDTunings{Kp: 3.5, Ki: 0.05, Kd: 1.0}

// Settings is the persisted, mutable configuration block: recipe and
// power-limit selection, per-zone filament wear, and per-zone PID gains.
// It never holds transient runtime state (that lives in zone.Controller).
type Settings struct {
	Magic     uint32
	RecipeIdx uint8
	LimitIdx  uint8
	UpperWear float64
	LowerWear float64
	Upper     PIDTunings
	Lower     PIDTunings
}

// DefaultSettings is written on first boot or whenever the loaded magic
// does not match SchemaMagic.
func DefaultSettings() Settings {
	return Settings{
		Magic:     SchemaMagic,
		RecipeIdx: 0,
		LimitIdx:  0,
		UpperWear: 100,
		LowerWear: 100,
		Upper:     DefaultTunings,
		Lower:     DefaultTunings,
	}
}

// Encode packs Settings into its wire layout: fixed-width little-endian
// fields in declaration order, never relying on Go's in-memory struct
// layout.
func (s Settings) Encode() []byte {
	buf := make([]byte, BlockSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], s.Magic)
	off += 4
	buf[off] = s.RecipeIdx
	off++
	buf[off] = s.LimitIdx
	off++
	putFloat32 := func(v float64) {
		binary.LittleEndian.PutUint32(buf[off:], f32bits(v))
		off += 4
	}
	putFloat32(s.UpperWear)
	putFloat32(s.LowerWear)
	putFloat32(s.Upper.Kp)
	putFloat32(s.Upper.Ki)
	putFloat32(s.Upper.Kd)
	putFloat32(s.Lower.Kp)
	putFloat32(s.Lower.Ki)
	putFloat32(s.Lower.Kd)
	return buf
}

// DecodeSettings unpacks a wire-layout block. It returns an error only for
// a malformed (too-short) buffer, never for a magic mismatch — callers
// check Magic themselves to decide whether to fall back to defaults.
func DecodeSettings(buf []byte) (Settings, error) {
	if len(buf) < BlockSize {
		return Settings{}, fmt.Errorf("elpico: settings block too short: %d bytes, want %d", len(buf), BlockSize)
	}
	off := 0
	var s Settings
	s.Magic = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	s.RecipeIdx = buf[off]
	off++
	s.LimitIdx = buf[off]
	off++
	getFloat32 := func() float64 {
		v := f32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		return v
	}
	s.UpperWear = getFloat32()
	s.LowerWear = getFloat32()
	s.Upper.Kp = getFloat32()
	s.Upper.Ki = getFloat32()
	s.Upper.Kd = getFloat32()
	s.Lower.Kp = getFloat32()
	s.Lower.Ki = getFloat32()
	s.Lower.Kd = getFloat32()
	return s, nil
}

// Equal reports byte-for-byte equality of the encoded form, which is the
// comparison the persistence layer uses to suppress redundant writes.
func (s Settings) Equal(other Settings) bool {
	a, b := s.Encode(), other.Encode()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
