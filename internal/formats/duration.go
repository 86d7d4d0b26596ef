package formats

import (
	"regexp"
	"strconv"
)

var isoDurationRegexp = regexp.MustCompile(
	`^P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)W)?(?:(\d+(?:\.\d+)?)D)?` +
		`(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// seconds per unit, in the order of isoDurationRegexp groups.
var isoDurationUnits = [...]float64{365 * 86400, 30 * 86400, 7 * 86400, 86400, 3600, 60, 1}

// ParseISODuration parses an ISO 8601 duration such as PT1H2M3.5S into
// seconds. Years and months are taken as 365 and 30 days.
func ParseISODuration(raw string) (float64, bool) {
	m := isoDurationRegexp.FindStringSubmatch(raw)
	if m == nil || raw == "P" || raw == "PT" {
		return 0, false
	}
	var total float64
	for i, unit := range isoDurationUnits {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, false
		}
		total += v * unit
	}
	return total, true
}
