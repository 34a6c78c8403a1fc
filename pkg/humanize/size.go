package humanize

import "fmt"

func Size(i int64) (float64, string) {
	switch {
	case i < 1024:
		return float64(i), "B"
	case i < 1024*1024:
		return float64(i) / 1024, "KB"
	case i < 1024*1024*1024:
		return float64(i) / (1024 * 1024), "MB"
	default:
		return float64(i) / (1024 * 1024 * 1024), "GB"
	}
}

func Bytes(i int64) string {
	v, unit := Size(i)
	if unit == "B" {
		return fmt.Sprintf("%d%s", i, unit)
	}

	return fmt.Sprintf("%.1f%s", v, unit)
}

// Counters renders a "read of total" pair for progress text, degrading
// to just the read side when the total is unknown.
func Counters(read, total int64) string {
	if total <= 0 {
		return Bytes(read)
	}

	return fmt.Sprintf("%s / %s", Bytes(read), Bytes(total))
}
