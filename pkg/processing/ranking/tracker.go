package ranking

// Entry is a rankable car reference. The zero value means "no car".
type Entry interface {
	comparable
	CompletionReward() float64
}

// Listener receives the new occupant of a slot, the zero value if the slot
// was cleared.
type Listener[T Entry] func(car T)

// Tracker keeps the best and second best car of one track.
// Rewards are read from the entries at the time of comparison.
type Tracker[T Entry] struct {
	best     T
	second   T
	onBest   []Listener[T]
	onSecond []Listener[T]
}

func NewTracker[T Entry]() *Tracker[T] {
	return &Tracker[T]{}
}

func (t *Tracker[T]) OnBestChanged(fn Listener[T]) {
	t.onBest = append(t.onBest, fn)
}

func (t *Tracker[T]) OnSecondBestChanged(fn Listener[T]) {
	t.onSecond = append(t.onSecond, fn)
}

// Best returns the current best car, ok is false if the slot is empty
func (t *Tracker[T]) Best() (car T, ok bool) {
	var zero T
	return t.best, t.best != zero
}

// SecondBest returns the current second best car, ok is false if the slot is empty
func (t *Tracker[T]) SecondBest() (car T, ok bool) {
	var zero T
	return t.second, t.second != zero
}

// Update ranks car against the current slots.
// A car with a reward greater or equal to the best one takes over the best
// slot, the displaced car competes for the second slot.
func (t *Tracker[T]) Update(car T) {
	var zero T
	if car == zero {
		return
	}
	reward := car.CompletionReward()
	switch {
	case t.best == zero || reward >= t.best.CompletionReward():
		t.promote(car)
	case t.second == zero || reward >= t.second.CompletionReward():
		t.setSecond(car)
	}
}

func (t *Tracker[T]) promote(car T) {
	if t.best == car {
		return
	}
	var zero T
	prev := t.best
	t.best = car
	t.emit(t.onBest, car)

	// a car must never hold both slots
	vacated := false
	if t.second == car {
		t.second = zero
		vacated = true
	}
	if prev != zero &&
		(t.second == zero || prev.CompletionReward() >= t.second.CompletionReward()) {
		t.setSecond(prev)
		return
	}
	if vacated {
		t.emit(t.onSecond, zero)
	}
}

func (t *Tracker[T]) setSecond(car T) {
	if t.second == car || t.best == car {
		return
	}
	t.second = car
	t.emit(t.onSecond, car)
}

// Reset clears both slots. Listeners are notified once per slot that was
// occupied.
func (t *Tracker[T]) Reset() {
	var zero T
	if t.best != zero {
		t.best = zero
		t.emit(t.onBest, zero)
	}
	if t.second != zero {
		t.second = zero
		t.emit(t.onSecond, zero)
	}
}

// Forget removes car from the slots. If the best car is removed the second
// best car moves up.
func (t *Tracker[T]) Forget(car T) {
	var zero T
	if car == zero {
		return
	}
	if t.second == car {
		t.second = zero
		t.emit(t.onSecond, zero)
	}
	if t.best == car {
		next := t.second
		t.best = next
		t.emit(t.onBest, next)
		if next != zero {
			t.second = zero
			t.emit(t.onSecond, zero)
		}
	}
}

func (t *Tracker[T]) emit(listeners []Listener[T], car T) {
	for _, fn := range listeners {
		fn(car)
	}
}
