package main

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RatiosNet is the fixed-architecture regressor:
// linear(in -> hidden) -> tanh -> linear(hidden -> 1).
type RatiosNet struct {
	inputShape  int
	hiddenShape int

	w1 *mat.Dense    // hidden x in
	b1 *mat.VecDense // hidden
	w2 *mat.VecDense // hidden (the single output row of layer 2)
	b2 float64

	// momentum buffers, same shapes as the parameters
	vw1 *mat.Dense
	vb1 *mat.VecDense
	vw2 *mat.VecDense
	vb2 float64
}

// NewRatiosNet creates a network with uniform(-k, k) initial weights where
// k = 1/sqrt(fanIn), the same scheme torch uses for linear layers.
func NewRatiosNet(inputShape, hiddenShape int, rng *rand.Rand) *RatiosNet {
	n := &RatiosNet{
		inputShape:  inputShape,
		hiddenShape: hiddenShape,
		w1:          mat.NewDense(hiddenShape, inputShape, nil),
		b1:          mat.NewVecDense(hiddenShape, nil),
		w2:          mat.NewVecDense(hiddenShape, nil),
		vw1:         mat.NewDense(hiddenShape, inputShape, nil),
		vb1:         mat.NewVecDense(hiddenShape, nil),
		vw2:         mat.NewVecDense(hiddenShape, nil),
	}

	k1 := 1.0 / math.Sqrt(float64(inputShape))
	for i := 0; i < hiddenShape; i++ {
		for j := 0; j < inputShape; j++ {
			n.w1.Set(i, j, uniform(rng, k1))
		}
		n.b1.SetVec(i, uniform(rng, k1))
	}

	k2 := 1.0 / math.Sqrt(float64(hiddenShape))
	for i := 0; i < hiddenShape; i++ {
		n.w2.SetVec(i, uniform(rng, k2))
	}
	n.b2 = uniform(rng, k2)

	return n
}

func uniform(rng *rand.Rand, k float64) float64 {
	return (rng.Float64()*2 - 1) * k
}

// Repr identifies the model architecture; checkpoint files and the metrics
// log directory are named after it.
func (n *RatiosNet) Repr() string {
	return fmt.Sprintf("nn_ratios_regression_h%d", n.hiddenShape)
}

// Predict runs a forward pass for a single input row.
func (n *RatiosNet) Predict(x []float64) float64 {
	out := 0.0
	for i := 0; i < n.hiddenShape; i++ {
		z := n.b1.AtVec(i)
		for j := 0; j < n.inputShape; j++ {
			z += n.w1.At(i, j) * x[j]
		}
		out += n.w2.AtVec(i) * math.Tanh(z)
	}
	return out + n.b2
}

// PredictBatch runs a forward pass over all rows.
func (n *RatiosNet) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = n.Predict(row)
	}
	return out
}

// MSELoss returns the mean squared error of predictions against targets.
func (n *RatiosNet) MSELoss(x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for i, row := range x {
		d := n.Predict(row) - y[i]
		sum += d * d
	}
	return sum / float64(len(x))
}

// Step performs one SGD-with-momentum update on a minibatch and returns the
// batch MSE loss. The update rule matches torch.optim.SGD:
// v = momentum*v + grad; param -= lr*v.
func (n *RatiosNet) Step(x [][]float64, y []float64, lr, momentum float64) float64 {
	batch := len(x)
	if batch == 0 {
		return 0
	}

	gw1 := mat.NewDense(n.hiddenShape, n.inputShape, nil)
	gb1 := mat.NewVecDense(n.hiddenShape, nil)
	gw2 := mat.NewVecDense(n.hiddenShape, nil)
	gb2 := 0.0

	loss := 0.0
	act := make([]float64, n.hiddenShape)

	for r, row := range x {
		// forward, keeping the hidden activations
		out := n.b2
		for i := 0; i < n.hiddenShape; i++ {
			z := n.b1.AtVec(i)
			for j := 0; j < n.inputShape; j++ {
				z += n.w1.At(i, j) * row[j]
			}
			act[i] = math.Tanh(z)
			out += n.w2.AtVec(i) * act[i]
		}

		diff := out - y[r]
		loss += diff * diff

		// backward: dLoss/dout for the mean over the batch
		dout := 2 * diff / float64(batch)
		gb2 += dout
		for i := 0; i < n.hiddenShape; i++ {
			gw2.SetVec(i, gw2.AtVec(i)+dout*act[i])

			// through tanh: d(tanh z)/dz = 1 - tanh(z)^2
			dz := dout * n.w2.AtVec(i) * (1 - act[i]*act[i])
			gb1.SetVec(i, gb1.AtVec(i)+dz)
			for j := 0; j < n.inputShape; j++ {
				gw1.Set(i, j, gw1.At(i, j)+dz*row[j])
			}
		}
	}

	// momentum update
	n.vb2 = momentum*n.vb2 + gb2
	n.b2 -= lr * n.vb2
	for i := 0; i < n.hiddenShape; i++ {
		n.vw2.SetVec(i, momentum*n.vw2.AtVec(i)+gw2.AtVec(i))
		n.w2.SetVec(i, n.w2.AtVec(i)-lr*n.vw2.AtVec(i))

		n.vb1.SetVec(i, momentum*n.vb1.AtVec(i)+gb1.AtVec(i))
		n.b1.SetVec(i, n.b1.AtVec(i)-lr*n.vb1.AtVec(i))

		for j := 0; j < n.inputShape; j++ {
			n.vw1.Set(i, j, momentum*n.vw1.At(i, j)+gw1.At(i, j))
			n.w1.Set(i, j, n.w1.At(i, j)-lr*n.vw1.At(i, j))
		}
	}

	return loss / float64(batch)
}
