package geolocation

import (
	"strings"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
)

// GazetteerEntry is a named point in the static fallback table.
type GazetteerEntry = providers.GazetteerEntry

// Gazetteer is an ordered name to coordinate table. Order breaks ties
// between substring matches.
type Gazetteer struct {
	entries []GazetteerEntry
}

var _ providers.Gazetteer = (*Gazetteer)(nil)

// NewGazetteer builds a gazetteer over entries in the given order.
func NewGazetteer(entries []GazetteerEntry) *Gazetteer {
	normalized := make([]GazetteerEntry, 0, len(entries))
	for _, entry := range entries {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == "" {
			continue
		}
		normalized = append(normalized, GazetteerEntry{Name: name, Coordinates: entry.Coordinates})
	}
	return &Gazetteer{entries: normalized}
}

// NewSingaporeGazetteer returns the default table of Singapore neighbourhoods.
func NewSingaporeGazetteer() *Gazetteer {
	return NewGazetteer(singaporeLocations)
}

// Lookup tries a case-insensitive exact match, then a substring match in
// either direction. The first entry in table order wins.
func (g *Gazetteer) Lookup(name string) (GazetteerEntry, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return GazetteerEntry{}, false
	}

	for _, entry := range g.entries {
		if entry.Name == key {
			return entry, true
		}
	}

	for _, entry := range g.entries {
		if strings.Contains(key, entry.Name) || strings.Contains(entry.Name, key) {
			return entry, true
		}
	}

	return GazetteerEntry{}, false
}

// Len returns the number of entries.
func (g *Gazetteer) Len() int {
	return len(g.entries)
}

func loc(name string, lat, lng float64) GazetteerEntry {
	return GazetteerEntry{Name: name, Coordinates: providers.Coordinates{Latitude: lat, Longitude: lng}}
}

var singaporeLocations = []GazetteerEntry{
	loc("bugis", 1.3008, 103.8558),
	loc("orchard", 1.3048, 103.8318),
	loc("chinatown", 1.2838, 103.8443),
	loc("maxwell", 1.2803, 103.8447),
	loc("tanjong pagar", 1.2764, 103.8458),
	loc("raffles place", 1.2840, 103.8514),
	loc("marina bay", 1.2826, 103.8585),
	loc("city hall", 1.2931, 103.8520),
	loc("clarke quay", 1.2884, 103.8465),
	loc("little india", 1.3066, 103.8518),
	loc("farrer park", 1.3124, 103.8543),
	loc("lavender", 1.3072, 103.8630),
	loc("kallang", 1.3115, 103.8715),
	loc("geylang", 1.3185, 103.8871),
	loc("paya lebar", 1.3177, 103.8926),
	loc("joo chiat", 1.3120, 103.9015),
	loc("katong", 1.3050, 103.9050),
	loc("east coast", 1.3010, 103.9120),
	loc("bedok", 1.3240, 103.9300),
	loc("tampines", 1.3540, 103.9450),
	loc("pasir ris", 1.3730, 103.9493),
	loc("changi", 1.3570, 103.9880),
	loc("serangoon", 1.3500, 103.8730),
	loc("hougang", 1.3710, 103.8926),
	loc("sengkang", 1.3917, 103.8954),
	loc("punggol", 1.4052, 103.9024),
	loc("ang mo kio", 1.3700, 103.8495),
	loc("bishan", 1.3510, 103.8480),
	loc("toa payoh", 1.3343, 103.8563),
	loc("novena", 1.3204, 103.8438),
	loc("newton", 1.3138, 103.8380),
	loc("yishun", 1.4294, 103.8350),
	loc("sembawang", 1.4491, 103.8200),
	loc("woodlands", 1.4360, 103.7865),
	loc("bukit timah", 1.3294, 103.8021),
	loc("holland village", 1.3112, 103.7958),
	loc("buona vista", 1.3072, 103.7900),
	loc("queenstown", 1.2942, 103.8060),
	loc("tiong bahru", 1.2860, 103.8270),
	loc("redhill", 1.2896, 103.8168),
	loc("harbourfront", 1.2653, 103.8220),
	loc("clementi", 1.3151, 103.7650),
	loc("jurong east", 1.3331, 103.7422),
	loc("jurong west", 1.3404, 103.7090),
	loc("boon lay", 1.3386, 103.7058),
	loc("bukit batok", 1.3590, 103.7637),
	loc("bukit panjang", 1.3774, 103.7719),
	loc("choa chu kang", 1.3840, 103.7470),
}
