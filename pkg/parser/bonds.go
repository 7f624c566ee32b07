package parser

import (
	"strconv"
	"strings"

	"github.com/veesix-networks/vppifd/pkg/models"
)

type bondSection int

const (
	bondSectionNone bondSection = iota
	bondSectionActive
	bondSectionMembers
)

// ParseBondDetails parses "show bond details". A line starting with
// BondEthernet opens a record that stays current until the next header or
// the end of input; other lines never terminate it.
//
//	BondEthernet0
//	  mode: lacp
//	  load balance: l34
//	  number of active members: 2
//	    GigabitEthernet0/8/0
//	    GigabitEthernet0/9/0
//	  number of members: 2
//	    GigabitEthernet0/8/0
//	    GigabitEthernet0/9/0
//	  sw_if_index: 3
func ParseBondDetails(text string) []models.Bond {
	var (
		out     []models.Bond
		current *models.Bond
		section bondSection
	)

	flush := func() {
		if current != nil {
			out = append(out, *current)
		}
		current = nil
		section = bondSectionNone
	}

	for _, line := range splitLines(text) {
		if strings.HasPrefix(line, models.BondNamePrefix) {
			flush()
			name := strings.Fields(line)[0]
			id, _ := strconv.ParseUint(strings.TrimPrefix(name, models.BondNamePrefix), 10, 32)
			current = &models.Bond{
				Name:        name,
				ID:          uint32(id),
				Mode:        models.BondModeLACP,
				LoadBalance: models.LoadBalanceL2,
			}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.Contains(line, "number of active members:"):
			current.ActiveMemberCount = scanUint(line, "number of active members:")
			section = bondSectionActive
		case strings.Contains(line, "number of members:"):
			current.MemberCount = scanUint(line, "number of members:")
			section = bondSectionMembers
		case strings.Contains(line, "load balance:"):
			if lb, err := models.ParseLoadBalance(scanToken(line, "load balance:")); err == nil {
				current.LoadBalance = lb
			}
			section = bondSectionNone
		case strings.Contains(line, "mode:"):
			if mode, err := models.ParseBondMode(scanToken(line, "mode:")); err == nil {
				current.Mode = mode
			}
			section = bondSectionNone
		case strings.Contains(line, "sw_if_index:"):
			current.Index = scanUint(line, "sw_if_index:")
			section = bondSectionNone
		case strings.Contains(line, ":"):
			section = bondSectionNone
		case section == bondSectionMembers:
			if member := strings.TrimSpace(line); member != "" && !current.HasMember(member) {
				current.Members = append(current.Members, member)
			}
		}
	}
	flush()

	return out
}

// scanToken returns the first token after key, or "" when there is none.
func scanToken(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	fields := strings.Fields(line[idx+len(key):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func scanUint(line, key string) uint32 {
	v, err := strconv.ParseUint(scanToken(line, key), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}
