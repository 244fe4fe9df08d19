package model

import "gonum.org/v1/gonum/spatial/r2"

// Pose is a position plus rotation (radians, counter-clockwise from +X)
type Pose struct {
	Position r2.Vec
	Rotation float64
}

// Waypoint is a raw checkpoint as placed on a track
type Waypoint struct {
	Position      r2.Vec
	CaptureRadius float64
}

type Track struct {
	Name      string
	Start     Pose
	Waypoints []Waypoint
}
