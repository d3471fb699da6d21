package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam optimizer, gradients are rescaled when their global norm exceeds ClipNorm (if positive)
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	ClipNorm     float64

	step int
	m    map[*Dense]*moments
	v    map[*Dense]*moments
}

type moments struct {
	w *mat.Dense
	b *mat.VecDense
}

func NewAdam(lr, clipNorm float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		ClipNorm:     clipNorm,
		m:            make(map[*Dense]*moments),
		v:            make(map[*Dense]*moments),
	}
}

// GradNorm is the global L2 norm of the accumulated gradients
func GradNorm(m *MLP) float64 {
	sum := 0.0
	for _, l := range m.Layers {
		n := mat.Norm(l.GradW, 2)
		sum += n * n
		b := mat.Norm(l.GradB, 2)
		sum += b * b
	}
	return math.Sqrt(sum)
}

// Step applies the accumulated gradients and zeroes them
func (a *Adam) Step(m *MLP) {
	scale := 1.0
	if a.ClipNorm > 0 {
		if norm := GradNorm(m); norm > a.ClipNorm {
			scale = a.ClipNorm / norm
		}
	}
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for _, l := range m.Layers {
		mm, ok := a.m[l]
		if !ok {
			mm = &moments{w: mat.NewDense(l.Out(), l.In(), nil), b: mat.NewVecDense(l.Out(), nil)}
			a.m[l] = mm
			a.v[l] = &moments{w: mat.NewDense(l.Out(), l.In(), nil), b: mat.NewVecDense(l.Out(), nil)}
		}
		vv := a.v[l]
		for i := 0; i < l.Out(); i++ {
			for j := 0; j < l.In(); j++ {
				g := l.GradW.At(i, j) * scale
				mw := a.Beta1*mm.w.At(i, j) + (1-a.Beta1)*g
				vw := a.Beta2*vv.w.At(i, j) + (1-a.Beta2)*g*g
				mm.w.Set(i, j, mw)
				vv.w.Set(i, j, vw)
				l.W.Set(i, j, l.W.At(i, j)-a.LearningRate*(mw/c1)/(math.Sqrt(vw/c2)+a.Epsilon))
			}
			g := l.GradB.AtVec(i) * scale
			mb := a.Beta1*mm.b.AtVec(i) + (1-a.Beta1)*g
			vb := a.Beta2*vv.b.AtVec(i) + (1-a.Beta2)*g*g
			mm.b.SetVec(i, mb)
			vv.b.SetVec(i, vb)
			l.B.SetVec(i, l.B.AtVec(i)-a.LearningRate*(mb/c1)/(math.Sqrt(vb/c2)+a.Epsilon))
		}
	}
	m.ZeroGrad()
}
