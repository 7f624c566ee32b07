package parser

import (
	"strconv"
	"strings"

	"github.com/veesix-networks/vppifd/pkg/models"
)

const lcpPairPrefix = "itf-pair:"

// ParseLcpPairs parses "show lcp".
//
//	itf-pair: [0] GigabitEthernet0/8/0 tap1 ge0 2 type tap netns dataplane
//
// The netns pair is optional; "-" is the default namespace.
func ParseLcpPairs(text string) []models.LcpPair {
	var out []models.LcpPair

	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, lcpPairPrefix) {
			continue
		}
		if pair, ok := parseLcpLine(line); ok {
			out = append(out, pair)
		}
	}
	return out
}

func parseLcpLine(line string) (models.LcpPair, bool) {
	// itf-pair: [idx] vpp-if tap-if host-if host-idx type kind [netns ns]
	f := strings.Fields(line)
	if len(f) < 8 || f[6] != "type" {
		return models.LcpPair{}, false
	}

	idxField := strings.TrimSuffix(strings.TrimPrefix(f[1], "["), "]")
	phy, err := strconv.ParseUint(idxField, 10, 32)
	if err != nil {
		return models.LcpPair{}, false
	}
	host, err := strconv.ParseUint(f[5], 10, 32)
	if err != nil {
		return models.LcpPair{}, false
	}

	pair := models.LcpPair{
		VppInterface:  f[2],
		HostInterface: f[4],
		Tun:           f[7] == "tun",
		PhyIndex:      uint32(phy),
		HostIndex:     uint32(host),
	}
	if len(f) >= 10 && f[8] == "netns" && f[9] != "-" {
		pair.Namespace = f[9]
	}
	return pair, true
}
