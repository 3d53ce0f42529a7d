package pchspi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	readBurst  = 64 // whole data window
	shortBurst = 4  // one data slot

	// EraseBlockSize is the granularity of the erase cycle.
	EraseBlockSize = 4 << 10
)

// Progress reports how far a transfer got.
type Progress struct {
	Op    CycleKind
	Done  uint32
	Total uint32
}

// Read reads length bytes starting at flash linear address addr.
//
// Reads of 64 bytes or more use 64-byte bursts, shorter ones 4-byte bursts;
// the remainder goes in one final shorter burst. A failed burst does not stop
// the transfer. Its bytes are left zero and its error is joined into the
// returned error, so on error the buffer as a whole must not be trusted.
func (c *Controller) Read(addr, length uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkHardwareSequencing(); err != nil {
		return nil, err
	}

	burst := uint32(shortBurst)
	if length >= readBurst {
		burst = readBurst
	}
	n, r := length/burst, length%burst
	c.log.Debug("reading SPI flash", "addr", fmt.Sprintf("%#x", addr), "length", length,
		"chunks", n, "chunk", burst, "remainder", r)

	if err := c.waitReady(); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	var errs []error
	for i := range n {
		off := i * burst
		if err := c.readBurst(addr+off, buf[off:off+burst]); err != nil {
			c.log.Error("SPI flash read failed", "addr", fmt.Sprintf("%#x", addr+off), "err", err)
			errs = append(errs, err)
		}
		c.report(Progress{Op: CycleRead, Done: off + burst, Total: length})
	}
	if r != 0 {
		off := n * burst
		if err := c.readBurst(addr+off, buf[off:]); err != nil {
			c.log.Error("SPI flash read failed", "addr", fmt.Sprintf("%#x", addr+off), "err", err)
			errs = append(errs, err)
		}
		c.report(Progress{Op: CycleRead, Done: length, Total: length})
	}
	return buf, errors.Join(errs...)
}

// readBurst reads len(dst) bytes, at most one data window.
func (c *Controller) readBurst(addr uint32, dst []byte) error {
	if err := c.executeCycle(Command{Kind: CycleRead, Address: addr, DBC: uint8(len(dst) - 1)}); err != nil {
		return err
	}
	var dw [4]byte
	for slot := 0; slot*4 < len(dst); slot++ {
		v, err := c.port.ReadMMIO(c.fdata[slot], 4)
		if err != nil {
			return fmt.Errorf("read FDATA%d: %w", slot, err)
		}
		binary.LittleEndian.PutUint32(dw[:], v)
		copy(dst[slot*4:], dw[:])
	}
	return nil
}

// Write programs data at addr in 4-byte bursts. As with Read, failed bursts
// are reported together after the whole buffer has been attempted.
// The target range must have been erased.
func (c *Controller) Write(addr uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkHardwareSequencing(); err != nil {
		return err
	}
	c.log.Debug("writing SPI flash", "addr", fmt.Sprintf("%#x", addr), "length", len(data),
		"chunks", len(data)/shortBurst, "remainder", len(data)%shortBurst)

	if err := c.waitReady(); err != nil {
		return err
	}

	var errs []error
	for off := 0; off < len(data); off += shortBurst {
		chunk := data[off:min(off+shortBurst, len(data))]
		if err := c.writeBurst(addr+uint32(off), chunk); err != nil {
			c.log.Error("SPI flash write cycle failed", "addr", fmt.Sprintf("%#x", addr+uint32(off)), "err", err)
			errs = append(errs, err)
		}
		c.report(Progress{Op: CycleWrite, Done: uint32(off + len(chunk)), Total: uint32(len(data))})
	}
	return errors.Join(errs...)
}

func (c *Controller) writeBurst(addr uint32, chunk []byte) error {
	var dw [4]byte
	copy(dw[:], chunk)
	if err := c.port.WriteMMIO(c.fdata[0], 4, binary.LittleEndian.Uint32(dw[:])); err != nil {
		return fmt.Errorf("write FDATA0: %w", err)
	}
	return c.executeCycle(Command{Kind: CycleWrite, Address: addr, DBC: uint8(len(chunk) - 1)})
}

// Erase erases the 4KB block containing addr.
func (c *Controller) Erase(addr uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.erase(addr)
}

func (c *Controller) erase(addr uint32) error {
	if err := c.checkHardwareSequencing(); err != nil {
		return err
	}
	c.log.Debug("erasing SPI flash block", "addr", fmt.Sprintf("%#x", addr))
	if err := c.waitReady(); err != nil {
		return err
	}
	if err := c.executeCycle(Command{Kind: CycleErase, Address: addr}); err != nil {
		c.log.Error("SPI flash erase cycle failed", "addr", fmt.Sprintf("%#x", addr), "err", err)
		return err
	}
	return nil
}

// EraseRange erases the size bytes starting from base block by block.
// It stops at the first failure.
func (c *Controller) EraseRange(base, size uint32) error {
	if base%EraseBlockSize != 0 || size%EraseBlockSize != 0 {
		return fmt.Errorf("erase range %#x+%#x is not aligned to %#x", base, size, EraseBlockSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for off := uint32(0); off < size; off += EraseBlockSize {
		if err := c.erase(base + off); err != nil {
			return err
		}
		c.report(Progress{Op: CycleErase, Done: off + EraseBlockSize, Total: size})
	}
	return nil
}

// ReadTo copies length bytes from addr to w, one window of chunk bytes at a
// time. Chunks with failed bursts are written zero-filled and the copy goes
// on; their errors are joined in the result. Only a failing w stops it.
func (c *Controller) ReadTo(w io.Writer, addr, length uint32) error {
	const chunk = 64 << 10
	var errs []error
	for done := uint32(0); done < length; {
		n := min(length-done, chunk)
		buf, err := c.Read(addr+done, n)
		if err != nil {
			errs = append(errs, err)
		}
		if _, err := w.Write(buf); err != nil {
			return errors.Join(append(errs, err)...)
		}
		done += n
	}
	return errors.Join(errs...)
}

// WriteFrom programs the content of r starting at addr and returns the
// number of bytes written.
func (c *Controller) WriteFrom(addr uint32, r io.Reader) (int, error) {
	buf := [4 << 10]byte{}
	total := 0
	for {
		n, err := io.ReadFull(r, buf[:])
		if n > 0 {
			if werr := c.Write(addr+uint32(total), buf[:n]); werr != nil {
				return total, werr
			}
			total += n
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
