// Formats byte amounts into human readable format
package byteshuman

import (
	"fmt"
)

const (
	kB = 1024
	MB = 1024 * kB
	GB = 1024 * MB
	TB = 1024 * GB
)

func Humanize(num uint64) string {
	switch {
	case num >= TB:
		return fmt.Sprintf("%.1f TB", float64(num)/TB)
	case num >= GB:
		return fmt.Sprintf("%.1f GB", float64(num)/GB)
	case num >= MB:
		return fmt.Sprintf("%.1f MB", float64(num)/MB)
	case num >= kB:
		return fmt.Sprintf("%.1f kB", float64(num)/kB)
	default:
		return fmt.Sprintf("%d bytes", num)
	}
}
