package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Collected-field keys the price calculator reads.
const (
	FieldArtist      = "artist"
	FieldEventType   = "event_type"
	FieldLocation    = "location"
	FieldTotalPeople = "total_people"
)

type locationPricing struct {
	surcharge  int     // additive, applied after the multiplier
	multiplier float64 // 0 means no multiplier
	perExtra   int     // per person beyond the first
}

// Base prices in TL, keyed by folded artist and event type names.
var basePrices = map[string]map[string]int{
	"izel": {
		"dugun": 15000,
		"kina":  8000,
		"nisan": 6000,
	},
	"derya": {
		"dugun": 9000,
		"kina":  5000,
		"nisan": 4000,
	},
}

var locationPrices = map[string]locationPricing{
	"istanbul": {perExtra: 1500},
	"ankara":   {surcharge: 2000, perExtra: 1750},
	"izmir":    {multiplier: 1.15, perExtra: 1600},
	"bursa":    {surcharge: 1000, perExtra: 1250},
}

// Common alternate spellings, folded.
var priceAliases = map[string]string{
	"gelin":         "dugun",
	"gelin makyaji": "dugun",
	"dugun makyaji": "dugun",
	"kina gecesi":   "kina",
	"soz":           "nisan",
	"ist":           "istanbul",
	"izel hanim":    "izel",
	"derya hanim":   "derya",
}

func normalizePriceKey(s string) string {
	folded := asciiFold(turkishLower(s))
	if alias, ok := priceAliases[folded]; ok {
		return alias
	}
	return folded
}

// Calculate returns the deterministic price for an artist, event type and
// location with the given party size. Unknown combinations return ok=false
// and the persona LLM answers freely instead of quoting a number.
func Calculate(artist, eventType, location string, totalPeople int) (int, bool) {
	events, ok := basePrices[normalizePriceKey(artist)]
	if !ok {
		return 0, false
	}
	base, ok := events[normalizePriceKey(eventType)]
	if !ok {
		return 0, false
	}
	loc, ok := locationPrices[normalizePriceKey(location)]
	if !ok {
		return 0, false
	}

	price := float64(base)
	if loc.multiplier > 0 {
		price *= loc.multiplier
	}
	total := int(math.Round(price)) + loc.surcharge
	if totalPeople > 1 {
		total += (totalPeople - 1) * loc.perExtra
	}
	return total, true
}

// PriceBlock renders the pre-computed price line for the mode context, or ""
// when the collected fields do not determine a price yet.
func PriceBlock(collected map[string]string) string {
	artist := collected[FieldArtist]
	eventType := collected[FieldEventType]
	location := collected[FieldLocation]
	if artist == "" || eventType == "" || location == "" {
		return ""
	}

	totalPeople := 1
	if raw := collected[FieldTotalPeople]; raw != "" && raw != Skip {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			totalPeople = n
		}
	}

	price, ok := Calculate(artist, eventType, location, totalPeople)
	if !ok {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("FİYAT BİLGİSİ (önceden hesaplandı, bu tutarı aynen söyle, kendin hesap yapma):\n")
	fmt.Fprintf(&sb, "- %s / %s / %s", artist, eventType, location)
	if totalPeople > 1 {
		fmt.Fprintf(&sb, " / %d kişi", totalPeople)
	}
	fmt.Fprintf(&sb, ": %d TL\n", price)
	return sb.String()
}
