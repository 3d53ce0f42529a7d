// Package descriptor parses the Intel flash descriptor found at the start of
// a PCH SPI flash image.
//
// Bit-field layouts differ between chipset generations, so every field is
// extracted through an injected FieldDecoder (a *regs.Layout).
package descriptor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gentam/pchspi/flashmap"
)

const (
	Signature = 0x0FF0A55A
	Size      = 0x1000

	// signatureOffset is where the signature sits within the descriptor.
	signatureOffset = 0x10
	upperMapOffset  = 0xEFC
	oemOffset       = 0xF00

	// defaultRegions applies to layouts without a region count field.
	defaultRegions = flashmap.MaxRegions
)

var (
	ErrSignatureNotFound = errors.New("flash descriptor signature not found")
	ErrTruncatedImage    = errors.New("image too short for a flash descriptor")
	ErrOutOfBounds       = errors.New("descriptor offset out of bounds")
)

// FieldDecoder extracts bit fields of named descriptor registers.
type FieldDecoder interface {
	Field(reg string, raw uint32, field string) (uint32, error)
	HasField(reg, field string) bool
	RegisterExists(reg string) bool
}

// Map is the decoded descriptor map (FLMAP0-2).
type Map struct {
	FLMAP0 uint32 `yaml:"flmap0"`
	FLMAP1 uint32 `yaml:"flmap1"`
	FLMAP2 uint32 `yaml:"flmap2"`

	ComponentBase  uint32 `yaml:"component_base"`
	NumComponents  int    `yaml:"components"`
	RegionBase     uint32 `yaml:"region_base"`
	NumRegions     int    `yaml:"regions"`
	MasterBase     uint32 `yaml:"master_base"`
	NumMasters     int    `yaml:"masters"`
	PCHStrapBase   uint32 `yaml:"pch_strap_base"`
	PCHStrapLength int    `yaml:"pch_strap_length"`
	CPUStrapBase   uint32 `yaml:"cpu_strap_base"`
	CPUStrapLength int    `yaml:"cpu_strap_length"`
}

// Component section.
type Component struct {
	FLCOMP uint32 `yaml:"flcomp"`
	FLIL   uint32 `yaml:"flil"`
	FLPB   uint32 `yaml:"flpb"`
}

// Master is one FLMSTRx entry.
type Master struct {
	ID    flashmap.Master `yaml:"id"`
	Raw   uint32          `yaml:"raw"`
	Read  uint32          `yaml:"read_mask"`
	Write uint32          `yaml:"write_mask"`
}

// UpperMap is FLUMAP1, locating the VSCC table.
type UpperMap struct {
	FLUMAP1    uint32 `yaml:"flumap1"`
	VSCCBase   uint32 `yaml:"vscc_base"`
	VSCCLength int    `yaml:"vscc_length"`
}

type Descriptor struct {
	// Offset of the descriptor within the image.
	Offset    int      `yaml:"offset"`
	Signature uint32   `yaml:"signature"`
	Reserved  [16]byte `yaml:"-"`

	Map       Map                  `yaml:"map"`
	Component Component            `yaml:"component"`
	Regions   []flashmap.Region    `yaml:"regions"`
	Masters   []Master             `yaml:"masters"`
	Access    flashmap.AccessTable `yaml:"-"`
	UpperMap  UpperMap             `yaml:"upper_map"`
	OEM       []byte               `yaml:"-"`

	// Warnings collects non-fatal findings.
	Warnings []string `yaml:"warnings,omitempty"`
}

// Region returns the decoded region with the given ID.
func (d *Descriptor) Region(id flashmap.RegionID) (flashmap.Region, bool) {
	for _, r := range d.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return flashmap.Region{}, false
}

// PresentRegions returns the regions in use.
func (d *Descriptor) PresentRegions() []flashmap.Region {
	return flashmap.PresentRegions(d.Regions)
}

// Find returns the offset of the descriptor within image.
func Find(image []byte) (int, error) {
	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], Signature)
	pos := bytes.Index(image, sig[:])
	if pos < signatureOffset {
		return 0, ErrSignatureNotFound
	}
	return pos - signatureOffset, nil
}

type Option func(*parser)

// WithLogger logs the decoded sections at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(p *parser) { p.log = l }
}

// Parse locates and decodes the flash descriptor in image.
func Parse(image []byte, dec FieldDecoder, opts ...Option) (*Descriptor, error) {
	off, err := Find(image)
	if err != nil {
		return nil, err
	}
	if len(image)-off < Size {
		return nil, fmt.Errorf("%w: descriptor at %#x needs %#x bytes, %#x left", ErrTruncatedImage, off, Size, len(image)-off)
	}

	p := &parser{
		fd:  image[off : off+Size],
		dec: dec,
		log: slog.Default(),
		d:   &Descriptor{Offset: off, Access: flashmap.AccessTable{}},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log.Debug("flash descriptor found", "offset", fmt.Sprintf("%#x", off))

	for _, step := range []func(){p.header, p.descriptorMap, p.components, p.regions, p.masters, p.upperMap} {
		step()
		if p.err != nil {
			return nil, p.err
		}
	}
	return p.d, nil
}
