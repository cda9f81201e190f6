package history

import (
	"github.com/netgauge/netgauge/pkg/results"
)

// Achievement is one catalogue entry evaluated against history.
type Achievement struct {
	// ID is the achievement's stable identifier.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Description says how to unlock it.
	Description string `json:"description"`
	// Unlocked reports whether the current history satisfies it.
	Unlocked bool `json:"unlocked"`
}

// achievementEntry pairs a catalogue achievement with its predicate.
type achievementEntry struct {
	id, name, description string
	unlocked              func(history []results.Result) bool
}

// catalogue is the fixed, ordered achievement list. Unlock state is
// recomputed from history on every evaluation and never persisted, so
// deleting results can relock an achievement.
var catalogue = []achievementEntry{
	{
		id: "first-test", name: "First Steps",
		description: "Complete your first measurement",
		unlocked:    func(h []results.Result) bool { return len(h) >= 1 },
	},
	{
		id: "ten-tests", name: "Regular",
		description: "Complete 10 measurements",
		unlocked:    func(h []results.Result) bool { return len(h) >= 10 },
	},
	{
		id: "fifty-tests", name: "Dedicated",
		description: "Complete 50 measurements",
		unlocked:    func(h []results.Result) bool { return len(h) >= 50 },
	},
	{
		id: "download-500", name: "Fast Lane",
		description: "Measure a download of 500 Mbps or more",
		unlocked:    anyResult(func(r results.Result) bool { return r.Download >= 500 }),
	},
	{
		id: "download-1000", name: "Gigabit Club",
		description: "Measure a download of 1000 Mbps or more",
		unlocked:    anyResult(func(r results.Result) bool { return r.Download >= 1000 }),
	},
	{
		id: "low-ping", name: "Lightning Reflexes",
		description: "Measure a ping of 10 ms or less",
		unlocked:    anyResult(func(r results.Result) bool { return r.Ping > 0 && r.Ping <= 10 }),
	},
	{
		id: "straight-as", name: "Straight A's",
		description: "Earn an A or better on 5 consecutive measurements",
		unlocked:    straightAs,
	},
	{
		id: "night-owl", name: "Night Owl",
		description: "Run a measurement between midnight and 6am",
		unlocked: anyResult(func(r results.Result) bool {
			return r.Timestamp.Local().Hour() < 6
		}),
	},
	{
		id: "globetrotter", name: "Globetrotter",
		description: "Run measurements from 3 different locations",
		unlocked:    distinctLocations(3),
	},
}

// Evaluate runs the full achievement catalogue over history, in
// catalogue order.
func Evaluate(history []results.Result) []Achievement {
	achievements := make([]Achievement, 0, len(catalogue))
	for _, entry := range catalogue {
		achievements = append(achievements, Achievement{
			ID:          entry.id,
			Name:        entry.name,
			Description: entry.description,
			Unlocked:    entry.unlocked(history),
		})
	}
	return achievements
}

func anyResult(pred func(results.Result) bool) func([]results.Result) bool {
	return func(history []results.Result) bool {
		for _, r := range history {
			if pred(r) {
				return true
			}
		}
		return false
	}
}

// straightAs checks the 5 most recent results for an unbroken run of
// A-tier grades. Results without a stats block break the run.
func straightAs(history []results.Result) bool {
	if len(history) < 5 {
		return false
	}
	for _, r := range history[:5] {
		if r.Stats == nil {
			return false
		}
		if r.Stats.Grade != "A" && r.Stats.Grade != "A+" {
			return false
		}
	}
	return true
}

func distinctLocations(n int) func([]results.Result) bool {
	return func(history []results.Result) bool {
		seen := map[string]bool{}
		for _, r := range history {
			if r.Location != "" {
				seen[r.Location] = true
			}
			if len(seen) >= n {
				return true
			}
		}
		return false
	}
}
