package nn

import (
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// MLP is a stack of dense layers, hidden layers use relu and the output layer is linear
type MLP struct {
	Layers []*Dense
}

func NewMLP(r *rand.Rand, sizes ...int) *MLP {
	if len(sizes) < 2 {
		panic("an mlp needs at least input and output sizes")
	}
	layers := make([]*Dense, len(sizes)-1)
	for i := 0; i < len(sizes)-1; i++ {
		act := ReLU
		if i == len(sizes)-2 {
			act = Linear
		}
		layers[i] = NewDense(sizes[i], sizes[i+1], act, r)
	}
	return &MLP{Layers: layers}
}

func (m *MLP) Forward(x *mat.Dense) *mat.Dense {
	out := x
	for _, l := range m.Layers {
		out = l.Forward(out)
	}
	return out
}

// Predict the output for a single input
func (m *MLP) Predict(x []float64) []float64 {
	in := mat.NewDense(1, len(x), append([]float64(nil), x...))
	return mat.Row(nil, 0, m.Forward(in))
}

// Backward propagates the gradient of the output of the last Forward
func (m *MLP) Backward(gradOut *mat.Dense) {
	grad := gradOut
	for i := len(m.Layers) - 1; i >= 0; i-- {
		grad = m.Layers[i].Backward(grad)
	}
}

func (m *MLP) ZeroGrad() {
	for _, l := range m.Layers {
		l.ZeroGrad()
	}
}

// CopyFrom sets the weights of m to the ones of other, the shapes must match
func (m *MLP) CopyFrom(other *MLP) error {
	if len(m.Layers) != len(other.Layers) {
		return errors.Errorf("cannot copy %d layers into %d", len(other.Layers), len(m.Layers))
	}
	for i, l := range m.Layers {
		o := other.Layers[i]
		if l.In() != o.In() || l.Out() != o.Out() {
			return errors.Errorf("layer %d shape mismatch", i)
		}
		l.W.Copy(o.W)
		l.B.CopyVec(o.B)
	}
	return nil
}

type layerJSON struct {
	In  int        `json:"in"`
	Out int        `json:"out"`
	Act Activation `json:"activation"`
	W   []float64  `json:"w"`
	B   []float64  `json:"b"`
}

func (m *MLP) MarshalJSON() ([]byte, error) {
	layers := make([]layerJSON, len(m.Layers))
	for i, l := range m.Layers {
		w := make([]float64, 0, l.In()*l.Out())
		for r := 0; r < l.Out(); r++ {
			w = append(w, l.W.RawRowView(r)...)
		}
		layers[i] = layerJSON{
			In:  l.In(),
			Out: l.Out(),
			Act: l.Act,
			W:   w,
			B:   mat.Col(nil, 0, l.B),
		}
	}
	return json.Marshal(layers)
}

func (m *MLP) UnmarshalJSON(b []byte) error {
	var layers []layerJSON
	if err := json.Unmarshal(b, &layers); err != nil {
		return err
	}
	m.Layers = make([]*Dense, len(layers))
	for i, l := range layers {
		if len(l.W) != l.In*l.Out || len(l.B) != l.Out {
			return errors.Errorf("layer %d: weights do not match %dx%d", i, l.Out, l.In)
		}
		m.Layers[i] = &Dense{
			W:     mat.NewDense(l.Out, l.In, l.W),
			B:     mat.NewVecDense(l.Out, l.B),
			Act:   l.Act,
			GradW: mat.NewDense(l.Out, l.In, nil),
			GradB: mat.NewVecDense(l.Out, nil),
		}
	}
	return nil
}
