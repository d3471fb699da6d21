package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

type Activation string

const (
	Linear Activation = "linear"
	ReLU   Activation = "relu"
)

func (a Activation) apply(z float64) float64 {
	if a == ReLU && z < 0 {
		return 0
	}
	return z
}

func (a Activation) derivative(z float64) float64 {
	if a == ReLU && z <= 0 {
		return 0
	}
	return 1
}

// Dense is a fully connected layer computing act(x W^T + b) on batches of rows
type Dense struct {
	W   *mat.Dense // out x in
	B   *mat.VecDense
	Act Activation

	GradW *mat.Dense
	GradB *mat.VecDense

	// cached by Forward for Backward
	input *mat.Dense
	pre   *mat.Dense
}

// NewDense initializes the weights uniformly in +-sqrt(6/(in+out)), biases at zero
func NewDense(in, out int, act Activation, r *rand.Rand) *Dense {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (2*r.Float64() - 1) * limit
	}
	return &Dense{
		W:     mat.NewDense(out, in, w),
		B:     mat.NewVecDense(out, nil),
		Act:   act,
		GradW: mat.NewDense(out, in, nil),
		GradB: mat.NewVecDense(out, nil),
	}
}

func (d *Dense) In() int {
	_, c := d.W.Dims()
	return c
}

func (d *Dense) Out() int {
	r, _ := d.W.Dims()
	return r
}

// Forward computes the layer output for the batch x (rows are samples)
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != d.In() {
		panic(fmt.Sprintf("dense layer expects %d inputs, got %d", d.In(), cols))
	}
	pre := mat.NewDense(rows, d.Out(), nil)
	pre.Mul(x, d.W.T())
	for i := 0; i < rows; i++ {
		for j := 0; j < d.Out(); j++ {
			pre.Set(i, j, pre.At(i, j)+d.B.AtVec(j))
		}
	}
	out := mat.NewDense(rows, d.Out(), nil)
	out.Apply(func(_, _ int, v float64) float64 { return d.Act.apply(v) }, pre)
	d.input = x
	d.pre = pre
	return out
}

// Backward accumulates the gradients from the gradient of the output and returns the gradient of the input
func (d *Dense) Backward(gradOut *mat.Dense) *mat.Dense {
	if d.pre == nil {
		panic("dense backward called before forward")
	}
	rows, _ := gradOut.Dims()
	gradPre := mat.NewDense(rows, d.Out(), nil)
	gradPre.Apply(func(i, j int, v float64) float64 { return v * d.Act.derivative(d.pre.At(i, j)) }, gradOut)

	var gw mat.Dense
	gw.Mul(gradPre.T(), d.input)
	d.GradW.Add(d.GradW, &gw)
	for j := 0; j < d.Out(); j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += gradPre.At(i, j)
		}
		d.GradB.SetVec(j, d.GradB.AtVec(j)+sum)
	}

	gradIn := mat.NewDense(rows, d.In(), nil)
	gradIn.Mul(gradPre, d.W)
	return gradIn
}

func (d *Dense) ZeroGrad() {
	d.GradW.Zero()
	d.GradB.Zero()
}
