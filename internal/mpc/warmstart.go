package mpc

import "github.com/san-kum/autompc/internal/poly"

// warmStart owns the 8N initial-guess buffer handed to the solver. The
// buffer is reseeded in place every tick; it carries no history beyond the
// previous actuator values passed into seed, and it is not safe for
// concurrent ticks.
type warmStart struct {
	n   int
	buf []float64
}

func newWarmStart(n int) *warmStart {
	return &warmStart{n: n, buf: make([]float64, numBlocks*n)}
}

// seed fills the buffer: x linearly spaced over a unit interval, y from the
// reference curve at those samples, heading zero, speed and errors held at
// their current values, and both actuator series held at the previous
// command.
func (w *warmStart) seed(v, cte, epsi, acc, steer float64, curve poly.Polynomial) []float64 {
	n := w.n
	for t := 0; t < n; t++ {
		x := 0.0
		if n > 1 {
			x = float64(t) / float64(n-1)
		}
		w.buf[blockX*n+t] = x
		w.buf[blockY*n+t] = curve.Eval(x)
		w.buf[blockPsi*n+t] = 0
		w.buf[blockV*n+t] = v
		w.buf[blockCTE*n+t] = cte
		w.buf[blockEPsi*n+t] = epsi
		w.buf[blockAcc*n+t] = acc
		w.buf[blockSteer*n+t] = steer
	}
	return w.buf
}
