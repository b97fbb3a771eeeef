package capture

import (
	"errors"
	"fmt"
	"strings"
)

// Target is what a resolution will be committed to.
type Target string

const (
	TargetStop   Target = "stop"   // append a new stop
	TargetOrigin Target = "origin" // set the explicit origin
	TargetEdit   Target = "edit"   // overwrite an existing stop in place
)

// ErrInvalidTarget is returned for an unknown target or an edit without a stop id.
var ErrInvalidTarget = errors.New("invalid resolution target")

// Key identifies one logical resolution action. At most one resolution runs per key.
type Key struct {
	Target Target
	StopID string // StopID is set for TargetEdit only.
}

// StopKey is the key for adding a new stop.
func StopKey() Key {
	return Key{Target: TargetStop}
}

// OriginKey is the key for setting the explicit origin.
func OriginKey() Key {
	return Key{Target: TargetOrigin}
}

// EditKey is the key for correcting the stop with stopID.
func EditKey(stopID string) Key {
	return Key{Target: TargetEdit, StopID: stopID}
}

// ParseKey builds a key from a target name and, for edits, a stop id.
func ParseKey(target, stopID string) (Key, error) {
	stopID = strings.TrimSpace(stopID)

	switch Target(strings.ToLower(strings.TrimSpace(target))) {
	case TargetStop:
		return StopKey(), nil
	case TargetOrigin:
		return OriginKey(), nil
	case TargetEdit:
		if stopID == "" {
			return Key{}, fmt.Errorf("%w: edit requires a stop id", ErrInvalidTarget)
		}
		return EditKey(stopID), nil
	default:
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
}

func (k Key) String() string {
	if k.Target == TargetEdit {
		return string(TargetEdit) + ":" + k.StopID
	}

	return string(k.Target)
}
