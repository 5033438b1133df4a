package utils

import (
	"fmt"
	"time"
)

// FormatDuration renders an uptime-style string: milliseconds under a
// second, then "2.00s", "2m30s", "2h30m". Sub-unit remainders are
// truncated, not rounded.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		rest := d - d.Truncate(time.Minute)
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(rest.Seconds()))
	default:
		rest := d - d.Truncate(time.Hour)
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(rest.Minutes()))
	}
}
