// Package board describes the pin bindings of the boards the monitor runs on.
//
// Only the GPS lines are driven by this program. The radio and SD card
// bindings are carried so the status page shows the whole pin budget.
package board

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Dir is the direction of a pin as seen from the MCU.
type Dir string

const (
	In    Dir = "in"
	Out   Dir = "out"
	InOut Dir = "in/out" // driven or floated at run time
)

type Pin struct {
	Name string `json:"name"`
	Port int    `json:"port"`
	Bit  int    `json:"bit"`
	Dir  Dir    `json:"dir"`
	// Line is the hwline key this pin backs, if any.
	Line string `json:"line,omitempty"`
}

// Label is the "P<port>.<bit>" pin label.
func (p Pin) Label() string { return fmt.Sprintf("P%d.%d", p.Port, p.Bit) }

// SPI is an SD card slot on an eUSCI block with DMA.
type SPI struct {
	Name    string `json:"name"`
	CSN     Pin    `json:"csn"`
	EUSCI   string `json:"eusci"`
	DMATx   string `json:"dma_tx"`
	DMARx   string `json:"dma_rx"`
	PinsSel string `json:"pins_sel"`
}

type Board struct {
	Name        string        `json:"name"`
	GPS         []Pin         `json:"gps"`
	Radio       []Pin         `json:"radio"`
	SD          []SPI         `json:"sd"`
	Tell        []Pin         `json:"tell"`
	WiggleDelay time.Duration `json:"wiggle_delay_ns"`
}

var dev6a = Board{
	Name: "dev6a",
	GPS: []Pin{
		{Name: "gsd4e_awake", Port: 6, Bit: 1, Dir: In, Line: "awake"},
		{Name: "gsd4e_cts", Port: 3, Bit: 0, Dir: Out, Line: "cts"},
		{Name: "gsd4e_onoff", Port: 4, Bit: 0, Dir: Out, Line: "on_off"},
		{Name: "gsd4e_resetn", Port: 6, Bit: 0, Dir: InOut, Line: "reset_n"},
		{Name: "gsd4e_rts", Port: 4, Bit: 5, Dir: In, Line: "rts"},
		{Name: "gsd4e_tm", Port: 4, Bit: 1, Dir: In},
	},
	Radio: []Pin{
		{Name: "si446x_cts", Port: 2, Bit: 4, Dir: In},
		{Name: "si446x_sdn", Port: 5, Bit: 0, Dir: Out},
		{Name: "si446x_irqn", Port: 5, Bit: 1, Dir: In},
		{Name: "si446x_csn", Port: 5, Bit: 2, Dir: Out},
	},
	SD: []SPI{
		{
			Name:    "sd0",
			CSN:     Pin{Name: "sd0_csn", Port: 10, Bit: 0, Dir: Out},
			EUSCI:   "EUSCI_B3",
			DMATx:   "CH6_B3_TX0",
			DMARx:   "CH7_B3_RX0",
			PinsSel: "P10.SEL0=0x0e",
		},
		{
			Name:    "sd1",
			CSN:     Pin{Name: "sd1_csn", Port: 9, Bit: 4, Dir: Out},
			EUSCI:   "EUSCI_A1",
			DMATx:   "CH2_A1_TX",
			DMARx:   "CH3_A1_RX",
			PinsSel: "P7.SEL0=0x07",
		},
	},
	Tell: []Pin{
		{Name: "tell", Port: 8, Bit: 6, Dir: Out, Line: "tell"},
		{Name: "tell_exc", Port: 8, Bit: 5, Dir: Out, Line: "tell_exc"},
	},
	WiggleDelay: 6 * time.Microsecond,
}

var boards = map[string]Board{
	dev6a.Name: dev6a,
}

// Default is the board used when none is configured.
const Default = "dev6a"

// Lookup returns a board by name.
func Lookup(name string) (Board, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = Default
	}
	b, ok := boards[name]
	if !ok {
		return Board{}, fmt.Errorf("unknown board %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return b, nil
}

// Names lists the known boards.
func Names() []string {
	out := make([]string, 0, len(boards))
	for n := range boards {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LineNames maps hwline keys to pin labels for every pin that backs a line.
// Configured line names override these.
func (b Board) LineNames() map[string]string {
	out := make(map[string]string)
	for _, group := range [][]Pin{b.GPS, b.Tell} {
		for _, p := range group {
			if p.Line != "" {
				out[p.Line] = p.Label()
			}
		}
	}
	return out
}
