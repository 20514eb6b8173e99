package gpio

// stepsPerDetent is the number of quadrature transitions in one click.
const stepsPerDetent = 4

// transitions maps (previous<<2 | current) AB states to a step.
// Invalid double transitions count as zero.
var transitions = [16]int{
	0, +1, -1, 0,
	-1, 0, 0, +1,
	+1, 0, 0, -1,
	0, -1, +1, 0,
}

// Quadrature decodes a two-channel incremental encoder.
// Not safe for concurrent use.
type Quadrature struct {
	state int
	steps int
}

// NewQuadrature starts decoding from the given channel levels.
func NewQuadrature(a, b bool) *Quadrature {
	return &Quadrature{state: abState(a, b)}
}

// Update feeds the current channel levels.
func (q *Quadrature) Update(a, b bool) {
	s := abState(a, b)
	q.steps += transitions[q.state<<2|s]
	q.state = s
}

// Detents returns whole clicks. A partial click counts as zero in either
// direction, so a knob resting off its detent does not move the setpoint.
func (q *Quadrature) Detents() int {
	return q.steps / stepsPerDetent
}

func abState(a, b bool) int {
	s := 0
	if a {
		s |= 2
	}
	if b {
		s |= 1
	}
	return s
}
