package sim

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/session"
)

// Driver is a scripted car. It heads straight for the checkpoint it has to
// capture next and moves a fixed distance per step.
type Driver struct {
	number   int
	route    []r2.Vec
	speed    float64
	maxSteps int

	pos       r2.Vec
	rotation  float64
	target    int // index into route
	steps     int
	enabled   bool
	destroyed bool
}

func newDriver(number int, route []r2.Vec, speed float64, maxSteps int, start model.Pose) *Driver {
	d := &Driver{
		number:   number,
		route:    route,
		speed:    speed,
		maxSteps: maxSteps,
	}
	d.Restart(start)
	return d
}

func (d *Driver) Number() int       { return d.number }
func (d *Driver) Speed() float64    { return d.speed }
func (d *Driver) Rotation() float64 { return d.rotation }
func (d *Driver) Steps() int        { return d.steps }
func (d *Driver) Position() r2.Vec  { return d.pos }
func (d *Driver) Enabled() bool     { return d.enabled }

// Finished reports whether every checkpoint of the route was captured
func (d *Driver) Finished() bool { return d.target >= len(d.route) }

// CheckpointCaptured makes the driver head for the following checkpoint.
// A driver stops once the last one is captured.
func (d *Driver) CheckpointCaptured() {
	d.target++
	if d.Finished() {
		d.enabled = false
	}
}

func (d *Driver) Restart(start model.Pose) {
	d.pos = start.Position
	d.rotation = start.Rotation
	// checkpoint 0 is the start line, the session expects checkpoint 1 next
	d.target = min(1, len(d.route))
	d.steps = 0
	d.enabled = !d.destroyed
}

func (d *Driver) Destroy() {
	d.destroyed = true
	d.enabled = false
}

// Step moves the driver towards its target. A driver that ran out of steps
// is disabled and keeps its last position.
func (d *Driver) Step() {
	if !d.enabled || d.Finished() {
		return
	}
	dir := r2.Sub(d.route[d.target], d.pos)
	dist := r2.Norm(dir)
	if dist <= d.speed {
		d.pos = d.route[d.target]
	} else {
		d.pos = r2.Add(d.pos, r2.Scale(d.speed/dist, dir))
	}
	if dist > 0 {
		d.rotation = math.Atan2(dir.Y, dir.X)
	}
	d.steps++
	if d.maxSteps > 0 && d.steps >= d.maxSteps {
		d.enabled = false
	}
}

// DriverPrototype clones Drivers for one track. Speeds are drawn from a
// seeded generator, so a prototype with the same seed yields the same
// sequence of drivers.
type DriverPrototype struct {
	route    []r2.Vec
	minSpeed float64
	maxSpeed float64
	maxSteps int

	mu     sync.Mutex
	rng    *rand.Rand
	cloned int
}

type PrototypeOption func(p *DriverPrototype)

// WithSpeed sets the range of distance units a driver moves per step
func WithSpeed(minSpeed, maxSpeed float64) PrototypeOption {
	return func(p *DriverPrototype) {
		p.minSpeed = minSpeed
		p.maxSpeed = maxSpeed
	}
}

func WithSeed(seed uint64) PrototypeOption {
	return func(p *DriverPrototype) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithMaxSteps disables drivers after n steps, 0 means no limit
func WithMaxSteps(n int) PrototypeOption {
	return func(p *DriverPrototype) {
		p.maxSteps = n
	}
}

var _ session.Prototype = (*DriverPrototype)(nil)

func NewDriverPrototype(t model.Track, opts ...PrototypeOption) *DriverPrototype {
	ret := &DriverPrototype{
		route:    make([]r2.Vec, len(t.Waypoints)),
		minSpeed: 0.5,
		maxSpeed: 1.5,
	}
	for i, wp := range t.Waypoints {
		ret.route[i] = wp.Position
	}
	WithSeed(1)(ret)
	for _, opt := range opts {
		opt(ret)
	}
	if ret.maxSpeed < ret.minSpeed {
		ret.minSpeed, ret.maxSpeed = ret.maxSpeed, ret.minSpeed
	}
	return ret
}

func (p *DriverPrototype) Clone(start model.Pose) (session.Car, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	speed := p.minSpeed + p.rng.Float64()*(p.maxSpeed-p.minSpeed)
	p.cloned++
	return newDriver(p.cloned, p.route, speed, p.maxSteps, start), nil
}
