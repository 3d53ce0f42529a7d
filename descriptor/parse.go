package descriptor

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gentam/pchspi/flashmap"
)

// parser decodes one descriptor. The first error sticks; later reads and
// field extractions become no-ops.
type parser struct {
	fd  []byte
	dec FieldDecoder
	log *slog.Logger
	d   *Descriptor
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) u32(section string, off uint32) uint32 {
	if p.err != nil {
		return 0
	}
	if uint64(off)+4 > Size {
		p.fail(fmt.Errorf("%s at %#x: %w", section, off, ErrOutOfBounds))
		return 0
	}
	return binary.LittleEndian.Uint32(p.fd[off:])
}

func (p *parser) field(reg string, raw uint32, name string) uint32 {
	if p.err != nil {
		return 0
	}
	v, err := p.dec.Field(reg, raw, name)
	if err != nil {
		p.fail(fmt.Errorf("decode %s.%s: %w", reg, name, err))
	}
	return v
}

func (p *parser) warn(msg string) {
	p.d.Warnings = append(p.d.Warnings, msg)
	p.log.Warn(msg)
}

func (p *parser) header() {
	copy(p.d.Reserved[:], p.fd[:signatureOffset])
	p.d.Signature = p.u32("signature", signatureOffset)
}

// [PCH-SPI|Flash Descriptor Map]
func (p *parser) descriptorMap() {
	m := &p.d.Map
	m.FLMAP0 = p.u32("map", 0x14)
	m.FLMAP1 = p.u32("map", 0x18)
	m.FLMAP2 = p.u32("map", 0x1C)

	m.ComponentBase = p.field("FLMAP0", m.FLMAP0, "FCBA") << 4
	m.NumComponents = int(p.field("FLMAP0", m.FLMAP0, "NC")) + 1
	m.RegionBase = p.field("FLMAP0", m.FLMAP0, "FRBA") << 4

	m.NumRegions = defaultRegions
	if p.dec.HasField("FLMAP0", "NR") {
		nr := p.field("FLMAP0", m.FLMAP0, "NR")
		if nr == 0 && p.err == nil {
			p.warn("only 1 region (FD) is found, the descriptor looks like it is from a newer platform; try another layout")
		}
		m.NumRegions = int(nr) + 1
	}

	m.MasterBase = p.field("FLMAP1", m.FLMAP1, "FMBA") << 4
	m.NumMasters = int(p.field("FLMAP1", m.FLMAP1, "NM"))
	m.PCHStrapBase = p.field("FLMAP1", m.FLMAP1, "FPSBA") << 4
	m.PCHStrapLength = int(p.field("FLMAP1", m.FLMAP1, "PSL"))

	// FCPUSBA is in 16-byte units like the other bases, not a raw offset.
	m.CPUStrapBase = p.field("FLMAP2", m.FLMAP2, "FCPUSBA") << 4
	m.CPUStrapLength = int(p.field("FLMAP2", m.FLMAP2, "CPUSL"))

	p.log.Debug("descriptor map",
		"fcba", fmt.Sprintf("%#x", m.ComponentBase), "nc", m.NumComponents,
		"frba", fmt.Sprintf("%#x", m.RegionBase), "nr", m.NumRegions,
		"fmba", fmt.Sprintf("%#x", m.MasterBase), "nm", m.NumMasters)
}

func (p *parser) components() {
	base := p.d.Map.ComponentBase
	p.d.Component = Component{
		FLCOMP: p.u32("component", base),
		FLIL:   p.u32("component", base+4),
		FLPB:   p.u32("component", base+8),
	}
}

func (p *parser) regions() {
	m := p.d.Map
	for i := range min(m.NumRegions, flashmap.MaxRegions) {
		id := flashmap.RegionID(i)
		reg := id.DescriptorRegister()
		if !p.dec.RegisterExists(reg) {
			continue
		}
		raw := p.u32("region", m.RegionBase+uint32(i)*4)
		r := flashmap.NewRegion(id, raw, p.field(reg, raw, "RB"), p.field(reg, raw, "RL"))
		if p.err != nil {
			return
		}
		p.log.Debug("region", "id", i, "name", r.Name, "raw", fmt.Sprintf("%08X", raw), "present", r.Present())
		p.d.Regions = append(p.d.Regions, r)
	}
}

func (p *parser) masters() {
	m := p.d.Map
	for i := range m.NumMasters {
		raw := p.u32("master", m.MasterBase+uint32(i)*4)
		mst := Master{
			ID:    flashmap.Master(i),
			Raw:   raw,
			Read:  p.field("FLMSTR1", raw, "MRRA"),
			Write: p.field("FLMSTR1", raw, "MRWA"),
		}
		if p.err != nil {
			return
		}
		p.d.Masters = append(p.d.Masters, mst)
	}

	for r := range min(m.NumRegions, flashmap.MaxRegions) {
		for _, mst := range p.d.Masters {
			p.d.Access.Set(flashmap.RegionID(r), mst.ID, flashmap.DecodeAccess(mst.Read, mst.Write, flashmap.RegionID(r)))
		}
	}
}

func (p *parser) upperMap() {
	raw := p.u32("upper map", upperMapOffset)
	p.d.UpperMap = UpperMap{
		FLUMAP1:    raw,
		VSCCBase:   (raw & 0xFF) << 4,
		VSCCLength: int(raw>>8) & 0xFF,
	}
	p.d.OEM = append([]byte(nil), p.fd[oemOffset:]...)
}
