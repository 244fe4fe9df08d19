package model

// CarStanding is a snapshot of one car's progress at a given tick
type CarStanding struct {
	CarID           string  `json:"carId"`
	Rank            int     `json:"rank"`
	CheckpointIndex int     `json:"checkpointIndex"`
	Reward          float64 `json:"reward"`
	Enabled         bool    `json:"enabled"`
}

// FitnessSnapshot carries the fitness signal of all cars on a track
type FitnessSnapshot struct {
	RunID     string        `json:"runId"`
	TrackName string        `json:"trackName"`
	Tick      uint64        `json:"tick"`
	Standings []CarStanding `json:"standings"`
}

func (f *FitnessSnapshot) ToMap() map[string]any {
	standings := make([]any, 0, len(f.Standings))
	for _, s := range f.Standings {
		standings = append(standings, map[string]any{
			"carId":           s.CarID,
			"rank":            s.Rank,
			"checkpointIndex": s.CheckpointIndex,
			"reward":          s.Reward,
			"enabled":         s.Enabled,
		})
	}
	return map[string]any{
		"runId":     f.RunID,
		"trackName": f.TrackName,
		"tick":      f.Tick,
		"standings": standings,
	}
}
