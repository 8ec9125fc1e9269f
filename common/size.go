package common

import "fmt"

// FormatKB formats a byte count the way the conversion log prints per-file sizes
func FormatKB(n int64) string {
	return fmt.Sprintf("%.1fKB", float64(n)/1024)
}

// FormatMB formats a byte count for the run summary
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// ChangePercent returns the signed size change from orig to conv.
// Negative values mean the file shrank.
func ChangePercent(orig, conv int64) float64 {
	if orig == 0 {
		return 0
	}
	return (float64(conv)/float64(orig) - 1) * 100
}

// ReductionPercent returns how much smaller conv is than orig, in percent
func ReductionPercent(orig, conv int64) float64 {
	return -ChangePercent(orig, conv)
}
