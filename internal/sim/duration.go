package sim

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration rounds d to whole seconds, halves to even, and prints it
// as H:MM:SS with a leading day count when needed ("1 day, 2:03:04").
func FormatDuration(d time.Duration) string {
	total := int64(math.RoundToEven(d.Seconds()))
	sign := ""
	if total < 0 {
		sign, total = "-", -total
	}
	days := total / 86400
	rest := total % 86400
	hms := fmt.Sprintf("%d:%02d:%02d", rest/3600, rest/60%60, rest%60)

	switch days {
	case 0:
		return sign + hms
	case 1:
		return sign + "1 day, " + hms
	}
	return fmt.Sprintf("%s%d days, %s", sign, days, hms)
}
