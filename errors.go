package pchspi

import (
	"errors"
	"fmt"
)

var (
	// ErrHardwareSequencingDisabled means the flash descriptor is not valid
	// (HSFS.FDV is 0); no hardware-sequenced cycle can be issued.
	ErrHardwareSequencingDisabled = errors.New("hardware sequencing is disabled")
	ErrCycleTimeout               = errors.New("SPI cycle still in progress")
	ErrCycleFailed                = errors.New("SPI cycle failed")
	ErrUnsupportedJEDECCycle      = errors.New("controller does not support the JEDEC ID cycle")
	ErrDataWindowExhausted        = errors.New("data window exhausted")
	ErrProtectionStateUnverified  = errors.New("BIOS write protection state could not be verified")
	ErrInvalidProtectedRange      = errors.New("invalid protected range")
)

// CycleError describes a hardware-sequenced cycle that did not complete.
// Err is ErrCycleTimeout or ErrCycleFailed.
type CycleError struct {
	Kind    CycleKind
	Address uint32
	Status  Status
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle at %#08x: %v (HSFS %s)", e.Kind, e.Address, e.Err, e.Status)
}

func (e *CycleError) Unwrap() error { return e.Err }
