// Package datafeed reads the latest VATSIM datafeed snapshot.
package datafeed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vainnor/atc-hours/types"
)

var (
	// ErrSnapshotUnavailable means no snapshot could be obtained this cycle.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrMalformedSnapshot means a snapshot was obtained but is unusable.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// Decode parses and validates a datafeed document.
func Decode(body []byte) (*types.VatsimData, error) {
	var data types.VatsimData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := Validate(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate rejects snapshots that cannot be trusted as a full listing.
func Validate(data *types.VatsimData) error {
	if data == nil {
		return ErrSnapshotUnavailable
	}
	if data.General.UpdateTimestamp.IsZero() {
		return fmt.Errorf("%w: missing general.update_timestamp", ErrMalformedSnapshot)
	}
	return nil
}
