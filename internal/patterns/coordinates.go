package patterns

import (
	"regexp"
	"strconv"
)

// qCentreRe splits the Q) line centre and radius, e.g. 3520N10230E005.
var qCentreRe = regexp.MustCompile(`^(\d{2})(\d{2})([NS])(\d{3})(\d{2})([EW])(\d{0,3})$`)

// ParseQCentre decodes the Q) line area: DDMM latitude, DDDMM longitude and an
// optional radius in nautical miles. Southern and western values are negative.
func ParseQCentre(s string) (lat, lon float64, radiusNM int, ok bool) {
	m := qCentreRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}

	lat = degMin(m[1], m[2])
	if lat > 90 {
		return 0, 0, 0, false
	}
	if m[3] == "S" {
		lat = -lat
	}

	lon = degMin(m[4], m[5])
	if lon > 180 {
		return 0, 0, 0, false
	}
	if m[6] == "W" {
		lon = -lon
	}

	if m[7] != "" {
		radiusNM, _ = strconv.Atoi(m[7])
	}
	return lat, lon, radiusNM, true
}

func degMin(deg, min string) float64 {
	d, _ := strconv.Atoi(deg)
	mm, _ := strconv.Atoi(min)
	return float64(d) + float64(mm)/60
}
