package domain

import (
	"fmt"
	"strings"
)

// JoinPolicy decides what happens to rows with no match on the other side.
type JoinPolicy string

const (
	// JoinInner drops unmatched rows.
	JoinInner JoinPolicy = "inner"
	// JoinLeft keeps unmatched rows with null enrichment.
	JoinLeft JoinPolicy = "left"
)

// ParseJoinPolicy parses "inner" or "left", case-insensitively.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch p := JoinPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case JoinInner, JoinLeft:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJoinPolicy, s)
	}
}

// Join sites, used to label stats and metrics.
const (
	SiteStartStation = "start_station"
	SiteEndStation   = "end_station"
	SiteWeather      = "weather"
)

// JoinStats describes the outcome of one enrichment join.
type JoinStats struct {
	Site   string
	Policy JoinPolicy
	// Rows is the number of rows on the enriched (left) side.
	Rows int
	// Unmatched is the number of those rows that found no partner.
	Unmatched int
	// Dropped is the number of rows removed from the output; zero under JoinLeft.
	Dropped int
	// DuplicateKeys counts reference keys that appear more than once.
	DuplicateKeys int
}

func newJoinStats(site string, policy JoinPolicy, rows, unmatched, duplicates int) JoinStats {
	s := JoinStats{
		Site:          site,
		Policy:        policy,
		Rows:          rows,
		Unmatched:     unmatched,
		DuplicateKeys: duplicates,
	}
	if policy == JoinInner {
		s.Dropped = unmatched
	}
	return s
}
