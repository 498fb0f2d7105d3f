// Package fcn implements a small fully connected network on top of Gorgonia.
//
// The network maps a batch of scalar inputs to scalar outputs through four
// linear layers with tanh saturation on all but the last. It exposes exactly
// the surface a meta-learner needs: forward evaluation, reverse-mode
// gradients, an explicit gradient-descent step, and total snapshot/restore of
// its parameters.
package fcn

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

var Float = G.Float32

var layerNames = []string{"input", "hidden_in", "hidden_out", "output"}

// net is a compiled expression graph for one batch size. The graph owns its
// own parameter nodes; canonical values are staged in before every run.
type net struct {
	g      *G.ExprGraph
	x, y   *G.Node
	params []*G.Node // ordered as FCN.names

	outVal  G.Value
	costVal G.Value
}

// FCN is a fully connected network. The authoritative parameter values live
// outside any expression graph; graphs are compiled lazily per batch size and
// synced from the canonical values before each run, so the same parameters
// can be evaluated over mini-batches and over the whole sample space alike.
type FCN struct {
	Config

	names  []string
	values map[string]*tensor.Dense
	grads  map[string][]float32

	nets map[int]*net
}

// New returns a new, uninitialized *FCN.
func New(conf Config) *FCN {
	return &FCN{
		Config: conf,
		nets:   make(map[int]*net),
	}
}

// Init initializes the parameters: Glorot for the weights, zeroes for the
// biases.
func (f *FCN) Init() error {
	if !f.IsValid() {
		return errors.Errorf("invalid config %v", f.Config)
	}

	n, err := f.buildNet(1)
	if err != nil {
		return err
	}
	f.nets = map[int]*net{1: n}

	f.values = make(map[string]*tensor.Dense, len(f.names))
	f.grads = make(map[string][]float32, len(f.names))
	for i, name := range f.names {
		v := n.params[i].Value().(*tensor.Dense)
		f.values[name] = v.Clone().(*tensor.Dense)
		f.grads[name] = make([]float32, v.Shape().TotalSize())
	}
	return nil
}

func (f *FCN) buildNet(batch int) (*net, error) {
	g := G.NewGraph()
	n := &net{
		g: g,
		x: G.NewMatrix(g, Float, G.WithShape(batch, f.Inputs), G.WithName("x")),
		y: G.NewMatrix(g, Float, G.WithShape(batch, f.Output), G.WithName("y")),
	}

	var m maebe
	var names []string
	dims := f.dims()
	h := n.x
	for i, name := range layerNames {
		var w, b *G.Node
		h, w, b = m.linear(g, h, dims[i], dims[i+1], name)
		if i < len(layerNames)-1 {
			h = m.tanh(h)
		}
		n.params = append(n.params, w, b)
		names = append(names, name+"_w", name+"_b")
	}
	cost := m.mse(h, n.y)
	if m.err != nil {
		return nil, m.err
	}

	G.Read(h, &n.outVal)
	G.Read(cost, &n.costVal)
	if _, err := G.Grad(cost, n.params...); err != nil {
		return nil, errors.WithStack(err)
	}

	if f.names == nil {
		f.names = names
	}
	return n, nil
}

func (f *FCN) netFor(batch int) (*net, error) {
	if f.values == nil {
		return nil, errors.New("uninitialized network: call Init first")
	}
	if batch < 1 {
		return nil, errors.Errorf("batch must hold at least one point. Got %d", batch)
	}
	if n, ok := f.nets[batch]; ok {
		return n, nil
	}
	n, err := f.buildNet(batch)
	if err != nil {
		return nil, err
	}
	f.nets[batch] = n
	return n, nil
}

// stage copies the canonical parameter values into the graph's nodes.
func (f *FCN) stage(n *net) {
	for i, name := range f.names {
		dst := n.params[i].Value().Data().([]float32)
		copy(dst, f.values[name].Data().([]float32))
	}
}

// run executes one forward-backward pass of the graph on the given batch.
func (f *FCN) run(n *net, xs, ys []float32) error {
	if len(xs)/f.Inputs != len(ys)/f.Output {
		return errors.Errorf("mismatched batch: %d inputs vs %d targets", len(xs)/f.Inputs, len(ys)/f.Output)
	}
	xT := tensor.New(tensor.WithShape(len(xs)/f.Inputs, f.Inputs), tensor.WithBacking(xs))
	yT := tensor.New(tensor.WithShape(len(ys)/f.Output, f.Output), tensor.WithBacking(ys))
	if err := G.Let(n.x, xT); err != nil {
		return errors.WithStack(err)
	}
	if err := G.Let(n.y, yT); err != nil {
		return errors.WithStack(err)
	}

	vm := G.NewTapeMachine(n.g, G.BindDualValues(n.params...))
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return errors.Wrapf(err, "run failed for batch size %d", len(xs)/f.Inputs)
	}
	return nil
}

// Predict evaluates the network on a batch of inputs. It has no side effects
// on parameters or accumulated gradients.
func (f *FCN) Predict(xs []float32) ([]float32, error) {
	n, err := f.netFor(len(xs) / f.Inputs)
	if err != nil {
		return nil, err
	}
	f.stage(n)
	ys := borrowSlice(len(xs) / f.Inputs * f.Output)
	defer returnSlice(ys)
	for i := range ys {
		ys[i] = 0
	}
	if err := f.run(n, xs, ys); err != nil {
		return nil, err
	}
	out := n.outVal.Data().([]float32)
	retVal := make([]float32, len(out))
	copy(retVal, out)
	return retVal, nil
}

// Loss resets the accumulated gradients, then returns the mean squared error
// of the network's estimate against ys.
func (f *FCN) Loss(xs, ys []float32) (float32, error) {
	f.ZeroGrad()
	n, err := f.netFor(len(xs) / f.Inputs)
	if err != nil {
		return 0, err
	}
	f.stage(n)
	if err := f.run(n, xs, ys); err != nil {
		return 0, err
	}
	return n.costVal.Data().(float32), nil
}

// Backward resets the accumulated gradients, then runs a forward-backward
// pass, accumulating ∂loss/∂θ for every parameter. It returns the batch loss.
func (f *FCN) Backward(xs, ys []float32) (float32, error) {
	f.ZeroGrad()
	n, err := f.netFor(len(xs) / f.Inputs)
	if err != nil {
		return 0, err
	}
	f.stage(n)
	if err := f.run(n, xs, ys); err != nil {
		return 0, err
	}
	for i, name := range f.names {
		gv, err := n.params[i].Grad()
		if err != nil {
			return 0, errors.Wrapf(err, "no gradient for %q", name)
		}
		vecf32.Add(f.grads[name], gv.Data().([]float32))
	}
	return n.costVal.Data().(float32), nil
}

// ZeroGrad resets the accumulated gradients.
func (f *FCN) ZeroGrad() {
	for _, g := range f.grads {
		for i := range g {
			g[i] = 0
		}
	}
}

// ApplyGrad performs one gradient-descent step: θ -= lr·∂loss/∂θ for every
// parameter, using the gradients accumulated by Backward.
func (f *FCN) ApplyGrad(lr float32) {
	for _, name := range f.names {
		data := f.values[name].Data().([]float32)
		step := borrowSlice(len(data))
		copy(step, f.grads[name])
		vecf32.Scale(step, lr)
		vecf32.Sub(data, step)
		returnSlice(step)
	}
}

// State returns a deep copy of every parameter. Later mutation of the network
// does not alter the snapshot.
func (f *FCN) State() StateDict {
	retVal := make(StateDict, len(f.names))
	for _, name := range f.names {
		retVal[name] = f.values[name].Clone().(*tensor.Dense)
	}
	return retVal
}

// SetState replaces every parameter with the values in sd. The replacement is
// total: a missing or misshapen parameter fails with ErrIncompleteState and
// leaves the network untouched.
func (f *FCN) SetState(sd StateDict) error {
	for _, name := range f.names {
		t, ok := sd[name]
		if !ok {
			return errors.Wrapf(ErrIncompleteState, "missing parameter %q", name)
		}
		if !t.Shape().Eq(f.values[name].Shape()) {
			return errors.Wrapf(ErrIncompleteState, "parameter %q has shape %v, want %v", name, t.Shape(), f.values[name].Shape())
		}
	}
	for _, name := range f.names {
		copy(f.values[name].Data().([]float32), sd[name].Data().([]float32))
	}
	return nil
}

// Clone returns an independent copy with identical parameters. The clone
// shares no mutable state with the original, so the two can train separately.
func (f *FCN) Clone() (*FCN, error) {
	f2 := New(f.Config)
	if err := f2.Init(); err != nil {
		return nil, err
	}
	if err := f2.SetState(f.State()); err != nil {
		return nil, err
	}
	return f2, nil
}

func (f *FCN) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err = enc.Encode(f.State()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *FCN) GobDecode(p []byte) error {
	if f.nets == nil {
		f.nets = make(map[int]*net)
	}
	if f.values == nil {
		if err := f.Init(); err != nil {
			return err
		}
	}

	dec := gob.NewDecoder(bytes.NewBuffer(p))
	var sd StateDict
	if err := dec.Decode(&sd); err != nil {
		return err
	}
	return f.SetState(sd)
}
