package flashmap

import (
	"fmt"
	"sort"
)

type Master int

const (
	MasterCPU Master = iota // host CPU/BIOS
	MasterME
	MasterGbE
	MasterEC
)

func (m Master) String() string {
	switch m {
	case MasterCPU:
		return "CPU"
	case MasterME:
		return "ME"
	case MasterGbE:
		return "GBe"
	case MasterEC:
		return "EC"
	}
	return fmt.Sprintf("Master %d", int(m))
}

type Access struct {
	Read  bool `yaml:"read"`
	Write bool `yaml:"write"`
}

func (a Access) String() string {
	s := ""
	if a.Read {
		s += "R"
	}
	if a.Write {
		s += "W"
	}
	return s
}

// DecodeAccess tests bit id of the read and write region masks.
func DecodeAccess(readMask, writeMask uint32, id RegionID) Access {
	bit := uint32(1) << uint(id)
	return Access{
		Read:  readMask&bit != 0,
		Write: writeMask&bit != 0,
	}
}

type AccessKey struct {
	Region RegionID
	Master Master
}

// AccessTable holds the read/write permissions of masters over regions.
type AccessTable map[AccessKey]Access

func (t AccessTable) Lookup(r RegionID, m Master) Access {
	return t[AccessKey{r, m}]
}

func (t AccessTable) Set(r RegionID, m Master, a Access) {
	t[AccessKey{r, m}] = a
}

// Masters returns the masters present in the table in ascending order.
func (t AccessTable) Masters() []Master {
	seen := map[Master]bool{}
	var ms []Master
	for k := range t {
		if !seen[k.Master] {
			seen[k.Master] = true
			ms = append(ms, k.Master)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	return ms
}
