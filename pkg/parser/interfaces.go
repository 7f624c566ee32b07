// Package parser turns vppctl report text into typed records. Every parser is
// total: lines that do not match are dropped and parsing continues, so a
// change in the device output format yields fewer records rather than an
// error.
package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/veesix-networks/vppifd/pkg/models"
)

const minInterfaceRowLen = 20

// ParseInterfaceTable parses "show interface".
//
//	              Name               Idx    State  MTU (L3/IP4/IP6/MPLS)     Counter          Count
//	GigabitEthernet0/8/0              1      up          9000/0/0/0     rx packets                  12
func ParseInterfaceTable(text string) []models.Interface {
	var out []models.Interface

	for _, line := range splitLines(text) {
		if iface, ok := parseInterfaceRow(line); ok {
			out = append(out, iface)
		}
	}
	return out
}

func parseInterfaceRow(line string) (models.Interface, bool) {
	if len(line) < minInterfaceRowLen {
		return models.Interface{}, false
	}
	if strings.Contains(line, "Name") && strings.Contains(line, "Idx") {
		return models.Interface{}, false
	}
	if line[0] < 'A' || line[0] > 'z' {
		return models.Interface{}, false
	}

	end := nameBoundary(line)
	name := strings.TrimRight(line[:end], " \t")
	fields := strings.Fields(line[end:])
	if name == "" || len(fields) < 3 {
		return models.Interface{}, false
	}

	idx, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return models.Interface{}, false
	}

	mtu, err := strconv.ParseUint(strings.SplitN(fields[2], "/", 2)[0], 10, 16)
	if err != nil {
		return models.Interface{}, false
	}

	up := fields[1] == "up"
	return models.Interface{
		Name:    name,
		Index:   uint32(idx),
		AdminUp: up,
		LinkUp:  up,
		MTU:     uint16(mtu),
		Type:    models.InterfaceTypeFromName(name),
	}, true
}

// nameBoundary returns the end of the name column: the start of the first
// run of two or more blanks followed by a digit. When no such run exists the
// first blank is used.
func nameBoundary(line string) int {
	firstBlank := -1
	for i := 0; i < len(line); i++ {
		if !isBlank(line[i]) {
			continue
		}
		if firstBlank < 0 {
			firstBlank = i
		}
		j := i
		for j < len(line) && isBlank(line[j]) {
			j++
		}
		if j-i >= 2 && j < len(line) && unicode.IsDigit(rune(line[j])) {
			return i
		}
		i = j - 1
	}
	if firstBlank < 0 {
		return len(line)
	}
	return firstBlank
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
