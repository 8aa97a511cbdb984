// Package humanfmt renders byte counts, durations, rates and digests for
// the human-readable companion fields of log events.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

type unit struct {
	size   float64
	suffix string
}

// byteUnits is ordered largest first.
var byteUnits = []unit{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// countUnits is ordered largest first.
var countUnits = []unit{
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

func scale(v float64, units []unit, sep string) (string, bool) {
	for _, u := range units {
		if v >= u.size {
			return fmt.Sprintf("%.2f%s%s", v/u.size, sep, u.suffix), true
		}
	}
	return "", false
}

// Bytes formats a byte count like "1.23 GiB".
func Bytes(b int64) string {
	if s, ok := scale(float64(b), byteUnits, " "); ok {
		return s
	}
	return strconv.FormatInt(b, 10) + " B"
}

// Throughput formats bytes per duration like "123.45 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(bytes) / d.Seconds()
	if s, ok := scale(perSec, byteUnits, " "); ok {
		return s + "/s"
	}
	return fmt.Sprintf("%.0f B/s", perSec)
}

// Count formats a count like "1.23M", "456.00K" or "789".
func Count(n int64) string {
	if s, ok := scale(float64(n), countUnits, ""); ok {
		return s
	}
	return strconv.FormatInt(n, 10)
}

// Rate formats items per second like "12.30K/s".
func Rate(n int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(n) / d.Seconds()
	if s, ok := scale(perSec, countUnits, ""); ok {
		return s + "/s"
	}
	return fmt.Sprintf("%.0f/s", perSec)
}

// Duration formats d compactly: "2h15m", "1m30s", "1.23s", "45.6ms", "789.0µs".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return trimZero(int64(d/time.Hour), "h", int64(d%time.Hour/time.Minute), "m")
	case d >= time.Minute:
		return trimZero(int64(d/time.Minute), "m", int64(d%time.Minute/time.Second), "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func trimZero(major int64, majorUnit string, minor int64, minorUnit string) string {
	if minor == 0 {
		return strconv.FormatInt(major, 10) + majorUnit
	}
	return strconv.FormatInt(major, 10) + majorUnit + strconv.FormatInt(minor, 10) + minorUnit
}

// Hex64 formats a 64-bit digest as 16 lowercase hex digits.
func Hex64(v uint64) string {
	return fmt.Sprintf("%016x", v)
}
