package model

type RankingSlot int

const (
	SlotBest       RankingSlot = 1
	SlotSecondBest RankingSlot = 2
)

func (s RankingSlot) String() string {
	switch s {
	case SlotBest:
		return "best"
	case SlotSecondBest:
		return "secondBest"
	default:
		return "unknown"
	}
}
