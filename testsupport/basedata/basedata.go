package basedata

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

func wp(x, y, radius float64) model.Waypoint {
	return model.Waypoint{Position: r2.Vec{X: x, Y: y}, CaptureRadius: radius}
}

// TriangleTrack: (0,0) -> (10,0) -> (10,10), capture radius 1
func TriangleTrack() model.Track {
	return model.Track{
		Name:  "triangle",
		Start: model.Pose{Position: r2.Vec{X: 0, Y: 0}},
		Waypoints: []model.Waypoint{
			wp(0, 0, 1),
			wp(10, 0, 1),
			wp(10, 10, 1),
		},
	}
}

// StraightTrack: (0,0) -> (50,0) -> (100,0), capture radius 2.
// Outside the capture radii the reward of a car at (x,0) is x/100.
func StraightTrack() model.Track {
	return model.Track{
		Name:  "straight",
		Start: model.Pose{Position: r2.Vec{X: 0, Y: 0}},
		Waypoints: []model.Waypoint{
			wp(0, 0, 2),
			wp(50, 0, 2),
			wp(100, 0, 2),
		},
	}
}

// SquareTrack is a closed 40 unit loop with a checkpoint every 5 units
func SquareTrack() model.Track {
	pts := []model.Waypoint{}
	for x := 0.0; x < 10; x += 5 {
		pts = append(pts, wp(x, 0, 1))
	}
	for y := 0.0; y < 10; y += 5 {
		pts = append(pts, wp(10, y, 1))
	}
	for x := 10.0; x > 0; x -= 5 {
		pts = append(pts, wp(x, 10, 1))
	}
	for y := 10.0; y >= 0; y -= 5 {
		pts = append(pts, wp(0, y, 1))
	}
	return model.Track{
		Name:      "square",
		Start:     model.Pose{Position: r2.Vec{X: 0, Y: 0}},
		Waypoints: pts,
	}
}

// CoLocatedTrack has checkpoints 1 and 2 at the same position
func CoLocatedTrack() model.Track {
	return model.Track{
		Name:  "colocated",
		Start: model.Pose{Position: r2.Vec{X: 0, Y: 0}},
		Waypoints: []model.Waypoint{
			wp(0, 0, 1),
			wp(10, 0, 1),
			wp(10, 0, 1),
			wp(20, 0, 1),
		},
	}
}

// ZeroSpacingTrack has many checkpoints without distance between them
func ZeroSpacingTrack(n int) model.Track {
	pts := []model.Waypoint{wp(0, 0, 1)}
	for range n {
		pts = append(pts, wp(5, 0, 1))
	}
	pts = append(pts, wp(10, 0, 1))
	return model.Track{
		Name:      "zerospacing",
		Start:     model.Pose{Position: r2.Vec{X: 0, Y: 0}},
		Waypoints: pts,
	}
}

const TrackFileYAML = `formatVersion: v1.0.0
tracks:
  - name: triangle
    start: {x: 0, y: 0, rotation: 0}
    checkpoints:
      - {x: 0, y: 0, radius: 1}
      - {x: 10, y: 0, radius: 1}
      - {x: 10, y: 10, radius: 1}
  - name: straight
    start: {x: 0, y: 0, rotation: 0}
    checkpoints:
      - {x: 0, y: 0, radius: 2}
      - {x: 50, y: 0, radius: 2}
      - {x: 100, y: 0, radius: 2}
`

const TrackFileJSON = `{
  "formatVersion": "v1.2.0",
  "tracks": [
    {
      "name": "triangle",
      "start": {"x": 0.0, "y": 0.0, "rotation": 0.0},
      "checkpoints": [
        {"x": 0.0, "y": 0.0, "radius": 1.0},
        {"x": 10.0, "y": 0.0, "radius": 1.0},
        {"x": 10.0, "y": 10.0, "radius": 1.0}
      ]
    },
    {
      "name": "straight",
      "start": {"x": 0.0, "y": 0.0, "rotation": 1.5},
      "checkpoints": [
        {"x": 0.0, "y": 0.0, "radius": 2.0},
        {"x": 50.0, "y": 0.0, "radius": 2.0},
        {"x": 100.0, "y": 0.0, "radius": 2.0}
      ]
    }
  ]
}`
