package fcn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) linear(g *G.ExprGraph, input *G.Node, inputs, units int, name string) (retVal, w, b *G.Node) {
	if m.err != nil {
		return nil, nil, nil
	}
	w = G.NewMatrix(g, Float, G.WithShape(inputs, units), G.WithName(name+"_w"), G.WithInit(G.GlorotN(1.0)))
	b = G.NewMatrix(g, Float, G.WithShape(1, units), G.WithName(name+"_b"), G.WithInit(G.Zeroes()))
	xw := m.do(func() (*G.Node, error) { return G.Mul(input, w) })
	retVal = m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, b, nil, []byte{0}) })
	return retVal, w, b
}

func (m *maebe) tanh(input *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Tanh(input) })
}

// mse is the mean squared error between the estimate and the target.
func (m *maebe) mse(output, target *G.Node) (retVal *G.Node) {
	retVal = m.do(func() (*G.Node, error) { return G.Sub(output, target) })
	retVal = m.do(func() (*G.Node, error) { return G.Square(retVal) })
	retVal = m.do(func() (*G.Node, error) { return G.Mean(retVal) })
	return
}
