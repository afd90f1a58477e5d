package dispatcher

import (
	"errors"
	"fmt"
)

// ErrTransmissionFailed covers every network or body-read failure of a dispatch.
// It is logged by Dispatch and never returned to the triggering code.
var ErrTransmissionFailed = errors.New("transmission failed")

func transmissionError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransmissionFailed, stage, err)
}
