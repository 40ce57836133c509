package wave

import (
	"math"
	"strconv"
)

var timeUnits = []string{"s", "ms", "µs", "ns", "ps"}

// FormatTime renders a duration in seconds using the largest unit that keeps
// the value above one, rounded to four decimal places.
func FormatTime(seconds float64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}

	v := seconds
	for i, unit := range timeUnits {
		if v > 1.0 || i == len(timeUnits)-1 {
			return sign + strconv.FormatFloat(round(v, 4), 'f', -1, 64) + " " + unit
		}
		v *= 1000.0
	}
	return ""
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
