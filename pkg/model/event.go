package model

import "time"

// RankingEvent is emitted whenever a ranking slot of a track changes.
// CarID is empty if the slot was cleared.
type RankingEvent struct {
	TrackName string
	Slot      RankingSlot
	CarID     string
	Reward    float64
	Tick      uint64
	Timestamp time.Time
}

func (e *RankingEvent) ToMap() map[string]any {
	return map[string]any{
		"trackName": e.TrackName,
		"slot":      e.Slot.String(),
		"carId":     e.CarID,
		"reward":    e.Reward,
		"tick":      e.Tick,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
