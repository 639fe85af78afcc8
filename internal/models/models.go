// package models defines the data model for a discovery run
package models

import (
	"fmt"
	"strings"
)

const (
	trackURIPrefix  = "spotify:track:"
	artistURIPrefix = "spotify:artist:"
)

// SourceGroup labels where a track came from.
type SourceGroup int

const (
	GroupSeed SourceGroup = iota
	GroupCandidate
)

func (g SourceGroup) String() string {
	switch g {
	case GroupSeed:
		return "seed"
	case GroupCandidate:
		return "candidate"
	default:
		return ""
	}
}

// ParseSourceGroup is the inverse of [SourceGroup.String].
func ParseSourceGroup(s string) (SourceGroup, error) {
	switch s {
	case "seed":
		return GroupSeed, nil
	case "candidate":
		return GroupCandidate, nil
	default:
		return 0, fmt.Errorf("unknown source group %q", s)
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (g SourceGroup) MarshalText() ([]byte, error) {
	s := g.String()
	if s == "" {
		return nil, fmt.Errorf("invalid source group %d", int(g))
	}
	return []byte(s), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (g *SourceGroup) UnmarshalText(b []byte) error {
	parsed, err := ParseSourceGroup(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Artist is a catalog artist.
type Artist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// URI returns the catalog URI for the artist.
func (a Artist) URI() string {
	return artistURIPrefix + a.ID
}

// Track is a sampled track and the group it was sampled for.
type Track struct {
	URI   string      `json:"uri"`
	Group SourceGroup `json:"group"`
}

// ID strips the URI prefix and returns the bare catalog ID.
func (t Track) ID() string {
	return TrackID(t.URI)
}

// TrackID returns the bare catalog ID for a track URI or ID.
func TrackID(uri string) string {
	return strings.TrimPrefix(uri, trackURIPrefix)
}

// TrackURI returns the catalog URI for a track ID, leaving URIs untouched.
func TrackURI(id string) string {
	if strings.HasPrefix(id, trackURIPrefix) {
		return id
	}
	return trackURIPrefix + id
}

// ScoredTrack is a candidate track with its similarity score. Lower scores are more similar.
type ScoredTrack struct {
	Track Track   `json:"track"`
	Score float64 `json:"score"`
	Row   int     `json:"row"` // index into the FeatureTable the score was computed from
}
