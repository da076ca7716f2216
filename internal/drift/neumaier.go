package drift

import "math"

// Neumaier is a compensated scalar sum. The zero value is ready to use.
type Neumaier struct {
	sum, compensation float64
}

// NewNeumaier returns a summer whose running sum starts at initial.
func NewNeumaier(initial float64) Neumaier {
	return Neumaier{sum: initial}
}

// Add accumulates value. The low-order bits lost when forming sum+value are
// recovered from whichever operand has the larger magnitude; plain Kahan
// skips that comparison and loses the small operand when value dominates.
func (n *Neumaier) Add(value float64) {
	t := n.sum + value
	if math.Abs(n.sum) >= math.Abs(value) {
		n.compensation += (n.sum - t) + value
	} else {
		n.compensation += (value - t) + n.sum
	}
	n.sum = t
}

// Total returns sum + compensation without folding the compensation in.
func (n Neumaier) Total() float64 {
	return n.sum + n.compensation
}

func (n Neumaier) Sum() float64          { return n.sum }
func (n Neumaier) Compensation() float64 { return n.compensation }

// Reset zeroes both the sum and the compensation.
func (n *Neumaier) Reset() {
	*n = Neumaier{}
}
