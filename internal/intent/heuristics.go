package intent

import (
	"time"

	"github.com/justestif/go-aureum/internal/activity"
)

// DayPart buckets the hour of day.
type DayPart string

const (
	Morning   DayPart = "morning"
	Afternoon DayPart = "afternoon"
	Evening   DayPart = "evening"
	Night     DayPart = "night"
)

// DayPartAt returns the bucket for t in t's own location.
func DayPartAt(t time.Time) DayPart {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

// Mood is a loose reading of how the listener is engaging.
type Mood string

const (
	MoodNeutral  Mood = "neutral"
	MoodRestless Mood = "restless"
	MoodEngaged  Mood = "engaged"
)

// MoodOf reads entries: more skips than plays is restless, more than twice
// as many plays as skips is engaged.
func MoodOf(entries []activity.Entry) Mood {
	if len(entries) == 0 {
		return MoodNeutral
	}
	var plays, skips int
	for _, e := range entries {
		switch e.EventType {
		case activity.EventPlay:
			plays++
		case activity.EventSkip:
			skips++
		}
	}
	switch {
	case skips > plays:
		return MoodRestless
	case plays > skips*2:
		return MoodEngaged
	default:
		return MoodNeutral
	}
}
