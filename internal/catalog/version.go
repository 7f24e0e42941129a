package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const versionDateLayout = "2006.01.02"

// NextVersion returns the version following prev for a run at now. Versions
// are the UTC date; a second run on the same day appends a zero-padded
// counter. Versions sort lexically up to the 999th same-day run; past that
// the counter widens and only CompareVersions orders them.
func NextVersion(prev string, now time.Time) string {
	date := now.UTC().Format(versionDateLayout)
	prevDate, counter := splitVersion(prev)

	if prevDate == "" || prevDate < date {
		return date
	}
	return fmt.Sprintf("%s.%03d", prevDate, counter+1)
}

// CompareVersions orders two versions by date, then by counter. Unparseable
// versions sort before every valid one.
func CompareVersions(a, b string) int {
	aDate, aCounter := splitVersion(a)
	bDate, bCounter := splitVersion(b)
	if c := strings.Compare(aDate, bDate); c != 0 {
		return c
	}
	switch {
	case aCounter < bCounter:
		return -1
	case aCounter > bCounter:
		return 1
	}
	return 0
}

// splitVersion returns the date part of v and its counter (0 when absent).
// Unparseable versions return an empty date.
func splitVersion(v string) (string, int) {
	if len(v) < len(versionDateLayout) {
		return "", 0
	}
	date := v[:len(versionDateLayout)]
	if _, err := time.Parse(versionDateLayout, date); err != nil {
		return "", 0
	}

	rest := v[len(versionDateLayout):]
	if rest == "" {
		return date, 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rest, "."))
	if err != nil || !strings.HasPrefix(rest, ".") || n < 0 {
		return "", 0
	}
	return date, n
}
