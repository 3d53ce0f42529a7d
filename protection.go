package pchspi

import (
	"fmt"
)

// BIOSControl is the write-protection state of the BIOS region held in the
// BIOS Control register.
type BIOSControl struct {
	LockEnable      bool `yaml:"ble"`     // BIOSWE can only be set from SMM
	WriteEnable     bool `yaml:"bioswe"`  // BIOS region is writable
	SMMWriteProtect bool `yaml:"smm_bwp"` // writes need all cores in SMM
}

func (b BIOSControl) String() string {
	return fmt.Sprintf("BLE=%d BIOSWE=%d SMM_BWP=%d", btoi(b.LockEnable), btoi(b.WriteEnable), btoi(b.SMMWriteProtect))
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Controls of the BIOS Control register.
const (
	controlBLE    = "BiosLockEnable"
	controlBIOSWE = "BiosWriteEnable"
	controlSMMBWP = "SmmBiosWriteProtection"
)

func (c *Controller) BIOSControl() (BIOSControl, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.biosControl()
}

func (c *Controller) biosControl() (BIOSControl, error) {
	var bc BIOSControl
	for _, ctl := range []struct {
		name string
		dst  *bool
	}{
		{controlBLE, &bc.LockEnable},
		{controlBIOSWE, &bc.WriteEnable},
		{controlSMMBWP, &bc.SMMWriteProtect},
	} {
		v, err := c.port.Control(ctl.name)
		if err != nil {
			return bc, err
		}
		*ctl.dst = v != 0
	}
	return bc, nil
}

// DisableBIOSWriteProtection sets BIOSWE and reports whether it reads back
// as set. A BIOSWE that does not stick yields false and
// ErrProtectionStateUnverified.
//
// Only BIOSWE is checked afterwards. With SMM_BWP set, SMM may still block
// writes that BIOSWE claims are enabled.
func (c *Controller) DisableBIOSWriteProtection() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bc, err := c.biosControl()
	if err != nil {
		return false, err
	}
	c.log.Debug("BIOS control", "bc", bc)
	if bc.SMMWriteProtect {
		c.log.Warn("SMM BIOS write protection is enabled")
	}

	switch {
	case bc.WriteEnable:
		c.log.Info("BIOS write protection is not enabled")
		return true, nil
	case !bc.LockEnable:
		c.log.Info("BIOS write protection is enabled but not locked, disabling")
	default:
		c.log.Info("BIOS write protection is enabled, attempting to disable")
	}

	if err := c.port.SetControl(controlBIOSWE, 1); err != nil {
		return false, err
	}
	after, err := c.biosControl()
	if err != nil {
		return false, err
	}
	if !after.WriteEnable {
		c.log.Error("BIOS write protection is still enabled", "bc", after)
		return false, fmt.Errorf("BIOSWE reads back 0 (%s): %w", after, ErrProtectionStateUnverified)
	}
	c.log.Info("BIOS write protection is disabled", "bc", after)
	return true, nil
}

// LockState is the configuration lock state reported in HSFS.
type LockState struct {
	FlashLockDown      bool `yaml:"flockdn"` // FLOCKDN: controller config is locked
	DescriptorValid    bool `yaml:"fdv"`     // FDV: hardware sequencing is usable
	DescriptorSecurity bool `yaml:"fdopss"`  // FDOPSS: 0 when the override strap is set
}

func (c *Controller) LockState() (LockState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ls LockState
	for _, ctl := range []struct {
		name string
		dst  *bool
	}{
		{"FlashLockDown", &ls.FlashLockDown},
		{"FlashDescriptorValid", &ls.DescriptorValid},
		{"FlashDescriptorSecurityOverride", &ls.DescriptorSecurity},
	} {
		v, err := c.port.Control(ctl.name)
		if err != nil {
			return ls, err
		}
		*ctl.dst = v != 0
	}
	return ls, nil
}
