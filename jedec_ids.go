package pchspi

// Unknown is reported for codes missing from an IDTable.
const Unknown = "Unknown"

// IDTable resolves JEDEC codes to names. Devices are keyed by the full
// 24-bit ID.
type IDTable struct {
	Manufacturers map[uint8]string
	Devices       map[uint32]string
}

func (t IDTable) Lookup(id JEDECID) (manufacturer, part string) {
	manufacturer, part = Unknown, Unknown
	if name, ok := t.Manufacturers[id.Manufacturer]; ok {
		manufacturer = name
	}
	if name, ok := t.Devices[id.Value()]; ok {
		part = name
	}
	return manufacturer, part
}

// [JEP106]
const (
	manufacturerSpansion   = 0x01
	manufacturerEON        = 0x1C
	manufacturerAtmel      = 0x1F
	manufacturerMicron     = 0x20
	manufacturerISSI       = 0x9D
	manufacturerSST        = 0xBF
	manufacturerMacronix   = 0xC2
	manufacturerGigaDevice = 0xC8
	manufacturerWinbond    = 0xEF
)

var (
	flashIDMicronN25Q32     = uint32(0x20BA16)
	flashIDWinbondW25Q128JV = uint32(0xEF4018)
	flashIDWinbondW25Q128DT = uint32(0xEF7018) // [W25Q128|9.6 AC Electrical Characteristics] DTR parts
)

var DefaultIDTable = IDTable{
	Manufacturers: map[uint8]string{
		manufacturerSpansion:   "Spansion",
		manufacturerEON:        "EON",
		manufacturerAtmel:      "Atmel/Adesto",
		manufacturerMicron:     "Micron",
		manufacturerISSI:       "ISSI",
		manufacturerSST:        "SST",
		manufacturerMacronix:   "Macronix",
		manufacturerGigaDevice: "GigaDevice",
		manufacturerWinbond:    "Winbond",
	},
	Devices: map[uint32]string{
		flashIDMicronN25Q32: "N25Q032",
		0x20BA17:            "N25Q064",
		0x20BA18:            "N25Q128",
		0x20BA19:            "N25Q256",

		0xEF4016:                "W25Q32",
		0xEF4017:                "W25Q64",
		flashIDWinbondW25Q128JV: "W25Q128",
		0xEF4019:                "W25Q256",
		0xEF6018:                "W25Q128FW",
		flashIDWinbondW25Q128DT: "W25Q128JV-DTR",

		0xC22016: "MX25L3206E",
		0xC22017: "MX25L6406E",
		0xC22018: "MX25L12835F",
		0xC22019: "MX25L25635F",

		0xC84016: "GD25Q32",
		0xC84017: "GD25Q64",
		0xC84018: "GD25Q128",
		0xC86018: "GD25LQ128",

		0xBF2541: "SST25VF016B",
		0xBF254A: "SST25VF032B",

		0x1F4701: "AT25DF321A",
		0x1C3016: "EN25Q32",
		0x1C3017: "EN25Q64",

		0x9D6017: "IS25LP064",
		0x9D6018: "IS25LP128",

		0x012018: "S25FL128S",
		0x010219: "S25FL256S",
	},
}
