package sirf

// Canned message indices. The order is part of the command wire protocol:
// a CANNED command carries one of these as its index byte.
const (
	CannedPeek = iota
	CannedSwVer
	CannedFactory
	CannedFactoryClear
)

const (
	midInitDataSource = 0x80
	midPollSwVer      = 0x84
	midPeekPoke       = 0xb2
	midPowerMode      = 0xda

	sidPeek      = 0x03
	sidPowerMPM  = 0x02
	sidPowerFull = 0x00

	resetFactory      = 0x08
	resetFactoryClear = 0x88
	channels          = 12
)

type canned struct {
	name  string
	frame []byte
}

var cannedMsgs = []canned{
	CannedPeek:         {"peek", Frame([]byte{midPeekPoke, sidPeek, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04})},
	CannedSwVer:        {"swver", Frame([]byte{midPollSwVer, 0x00})},
	CannedFactory:      {"factory", Frame(initDataSource(resetFactory))},
	CannedFactoryClear: {"factory_clear", Frame(initDataSource(resetFactoryClear))},
}

// MPMRequest asks the module to enter micro power mode.
var MPMRequest = Frame([]byte{midPowerMode, sidPowerMPM, 0x00, 0x00, 0x00, 0x00})

// FullPowerRequest returns the module to full power.
var FullPowerRequest = Frame([]byte{midPowerMode, sidPowerFull})

func initDataSource(resetCfg byte) []byte {
	// ECEF x/y/z, clock drift, time of week: zeroes. Then week, channels, reset config.
	p := make([]byte, 25)
	p[0] = midInitDataSource
	p[23] = channels
	p[24] = resetCfg
	return p
}

// CannedCount is the number of entries in the canned message table.
func CannedCount() int { return len(cannedMsgs) }

// Canned returns a copy of canned message i.
func Canned(i int) ([]byte, bool) {
	if i < 0 || i >= len(cannedMsgs) {
		return nil, false
	}
	return append([]byte(nil), cannedMsgs[i].frame...), true
}

// CannedName returns the table name of canned message i, or "" if out of range.
func CannedName(i int) string {
	if i < 0 || i >= len(cannedMsgs) {
		return ""
	}
	return cannedMsgs[i].name
}

// CannedIndex looks a canned message up by name.
func CannedIndex(name string) (int, bool) {
	for i, c := range cannedMsgs {
		if c.name == name {
			return i, true
		}
	}
	return 0, false
}
