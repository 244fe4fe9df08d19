package session

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
)

// Car is the controllable car entity driven by the host (physics, agent).
type Car interface {
	Position() r2.Vec
	Enabled() bool
	// CheckpointCaptured is called for every checkpoint the car captures
	CheckpointCaptured()
	// Restart puts the car to start and resets any car local state
	Restart(start model.Pose)
	// Destroy is called when the car is removed from the roster
	Destroy()
}

// Prototype creates new cars placed at the given start pose.
type Prototype interface {
	Clone(start model.Pose) (Car, error)
}

// PrototypeFunc adapts a function to a Prototype
type PrototypeFunc func(start model.Pose) (Car, error)

func (f PrototypeFunc) Clone(start model.Pose) (Car, error) { return f(start) }

// RaceCar is a car participating in a track session.
type RaceCar struct {
	ID  uuid.UUID
	Car Car
	// next checkpoint to capture, checkpoint 0 is the start line
	CheckpointIndex int
	reward          float64
}

func newRaceCar(car Car) *RaceCar {
	return &RaceCar{ID: uuid.New(), Car: car, CheckpointIndex: 1}
}

// CompletionReward is the reward computed by the last tick, 0 after a restart
func (rc *RaceCar) CompletionReward() float64 { return rc.reward }

func (rc *RaceCar) standing() model.CarStanding {
	return model.CarStanding{
		CarID:           rc.ID.String(),
		CheckpointIndex: rc.CheckpointIndex,
		Reward:          rc.reward,
		Enabled:         rc.Car.Enabled(),
	}
}
