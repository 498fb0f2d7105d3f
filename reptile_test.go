package reptile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorgonia/reptile/fcn"
	"github.com/gorgonia/reptile/task"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

// linearModel is a one-parameter model y = w·x. It keeps the engine tests
// independent of the gorgonia network.
type linearModel struct {
	w    float32
	grad float32
}

func (m *linearModel) Predict(xs []float32) ([]float32, error) {
	ys := make([]float32, len(xs))
	for i, x := range xs {
		ys[i] = m.w * x
	}
	return ys, nil
}

func (m *linearModel) Loss(xs, ys []float32) (float32, error) {
	m.ZeroGrad()
	var sum float32
	for i := range xs {
		d := m.w*xs[i] - ys[i]
		sum += d * d
	}
	return sum / float32(len(xs)), nil
}

func (m *linearModel) Backward(xs, ys []float32) (float32, error) {
	m.ZeroGrad()
	var sum, g float32
	for i := range xs {
		d := m.w*xs[i] - ys[i]
		sum += d * d
		g += 2 * d * xs[i]
	}
	n := float32(len(xs))
	m.grad += g / n
	return sum / n, nil
}

func (m *linearModel) ApplyGrad(lr float32) { m.w -= lr * m.grad }
func (m *linearModel) ZeroGrad()            { m.grad = 0 }

func (m *linearModel) State() fcn.StateDict {
	return fcn.StateDict{
		"w": tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{m.w})),
	}
}

func (m *linearModel) SetState(sd fcn.StateDict) error {
	t, ok := sd["w"]
	if !ok {
		return errors.Wrap(fcn.ErrIncompleteState, "missing parameter \"w\"")
	}
	m.w = t.Data().([]float32)[0]
	return nil
}

func testSampler(t *testing.T, count int) *task.Sampler {
	t.Helper()
	space, err := task.Space(4, count)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return task.NewSampler(space, 1337)
}

func testConf(h *History) Config {
	return Config{
		InnerStepSize:   0.02,
		InnerBatch:      1,
		OuterStepSize:   0.5,
		OuterIterations: 3,
		MetaBatchSize:   4,
		EvalIterations:  4,
		EvalBatchSize:   4,
		Metrics:         h,
		Seed:            99,
	}
}

func TestCoolingSchedule(t *testing.T) {
	conf := testConf(nil)
	conf.OuterIterations = 10
	r := New(&linearModel{w: 1}, testSampler(t, 10), conf)

	if a0 := r.alpha(0); a0 != float32(conf.OuterStepSize) {
		t.Fatalf("alpha(0) = %v, want %v", a0, conf.OuterStepSize)
	}
	for i := 1; i < conf.OuterIterations; i++ {
		if !(r.alpha(i) < r.alpha(i-1)) {
			t.Fatalf("alpha should strictly decrease: alpha(%d)=%v, alpha(%d)=%v", i-1, r.alpha(i-1), i, r.alpha(i))
		}
	}
	if last := r.alpha(conf.OuterIterations - 1); last <= 0 {
		t.Fatalf("alpha should stay positive within the run. Got %v", last)
	}
}

func TestTrainZeroIterations(t *testing.T) {
	h := NewHistory()
	conf := testConf(h)
	conf.OuterIterations = 0

	model := &linearModel{w: 0.25}
	r := New(model, testSampler(t, 10), conf)
	if err := r.Train(task.Logistic); err != nil {
		t.Fatalf("%+v", err)
	}

	if model.w != 0.25 {
		t.Errorf("zero outer iterations should leave the weights unchanged. Got %v", model.w)
	}
	if len(h.Points) != 0 {
		t.Errorf("zero outer iterations should log nothing. Got %v", h.Points)
	}
}

func TestTrainUnsupportedKind(t *testing.T) {
	r := New(&linearModel{w: 1}, testSampler(t, 10), testConf(nil))
	if err := r.Train(task.Unknown); errors.Cause(err) != task.ErrUnsupportedKind {
		t.Fatalf("expected ErrUnsupportedKind. Got %+v", err)
	}
}

func TestTrain(t *testing.T) {
	h := NewHistory()
	// 10 points with mini-batches of 4 leaves a short final window of 2
	model := &linearModel{w: 0.1}
	r := New(model, testSampler(t, 10), testConf(h))

	if err := r.Train(task.Logistic); err != nil {
		t.Fatalf("%+v", err)
	}

	if model.w == 0.1 {
		t.Error("training should have moved the weights")
	}

	losses := h.Points["train/loss"]
	if len(losses) != 3 {
		t.Fatalf("expected one loss record per outer iteration. Got %d", len(losses))
	}
	for i, p := range losses {
		if p.Step != i {
			t.Errorf("loss %d recorded at step %d", i, p.Step)
		}
		if p.Value < 0 {
			t.Errorf("mean squared error cannot be negative. Got %v", p.Value)
		}
	}
}

func TestEvalNonDestructive(t *testing.T) {
	sampler := testSampler(t, 20)
	model := &linearModel{w: 0.3}
	conf := testConf(nil)
	conf.MetaBatchSize = 5
	r := New(model, sampler, conf)

	targets, _, err := sampler.Sample(task.Logistic)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	before := model.State()
	trace, loss, err := r.Eval(targets, 5, 8, 0.01)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	after := model.State()

	if diff := cmp.Diff(before["w"].Data(), after["w"].Data()); diff != "" {
		t.Errorf("Eval must restore the meta weights:\n%s", diff)
	}
	if len(trace) != 8+1 {
		t.Errorf("expected gradientSteps+1 trace entries. Got %d", len(trace))
	}
	for i, est := range trace {
		if len(est) != sampler.Len() {
			t.Errorf("trace %d covers %d of %d sample points", i, len(est), sampler.Len())
		}
	}
	if loss < 0 {
		t.Errorf("evaluation loss must be non-negative. Got %v", loss)
	}
}

func TestEvalZeroSteps(t *testing.T) {
	sampler := testSampler(t, 20)
	conf := testConf(nil)
	conf.MetaBatchSize = 5
	r := New(&linearModel{w: 0.3}, sampler, conf)

	targets, _, err := sampler.Sample(task.Logistic)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	trace, _, err := r.Eval(targets, 5, 0, 0.01)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("zero gradient steps should yield only the baseline estimate. Got %d entries", len(trace))
	}
}

func TestEvalInsufficientSamples(t *testing.T) {
	sampler := testSampler(t, 10)
	conf := testConf(nil)
	conf.MetaBatchSize = 10
	r := New(&linearModel{w: 0.3}, sampler, conf)

	targets := make([]float32, 10)
	if _, _, err := r.Eval(targets, 5, 1, 0.01); err != nil {
		t.Fatalf("drawing the whole space should be fine. Got %+v", err)
	}
}

func TestNewPanicsOnInvalidConf(t *testing.T) {
	assert.Panics(t, func() {
		New(&linearModel{}, testSampler(t, 10), Config{})
	}, "invalid config should panic")

	assert.Panics(t, func() {
		conf := testConf(nil)
		conf.MetaBatchSize = 11
		New(&linearModel{}, testSampler(t, 10), conf)
	}, "meta batch larger than the sample space should panic")
}

// TestTrainFCN runs the full loop against the real gorgonia network.
func TestTrainFCN(t *testing.T) {
	sampler := testSampler(t, 12)
	model := fcn.New(fcn.DefaultConf(4))
	if err := model.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	h := NewHistory()
	conf := Config{
		InnerStepSize:   0.02,
		InnerBatch:      1,
		OuterStepSize:   0.1,
		OuterIterations: 2,
		MetaBatchSize:   5, // leaves a short window of 2
		EvalIterations:  2,
		EvalBatchSize:   2,
		Metrics:         h,
		Seed:            99,
	}
	r := New(model, sampler, conf)

	before := model.State()
	if err := r.Train(task.Logistic); err != nil {
		t.Fatalf("%+v", err)
	}
	after := model.State()

	var moved bool
	for name := range before {
		if cmp.Diff(before[name].Data(), after[name].Data()) != "" {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("training should have moved the meta parameters")
	}

	targets, _, err := sampler.Sample(task.Logistic)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	trace, loss, err := r.Eval(targets, 2, conf.EvalIterations, conf.InnerStepSize)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(trace) != conf.EvalIterations+1 {
		t.Errorf("expected %d trace entries. Got %d", conf.EvalIterations+1, len(trace))
	}
	if loss < 0 {
		t.Errorf("evaluation loss must be non-negative. Got %v", loss)
	}

	restored := model.State()
	for name := range after {
		if diff := cmp.Diff(after[name].Data(), restored[name].Data()); diff != "" {
			t.Errorf("Eval must restore the meta weights of %q:\n%s", name, diff)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	filename := dir + "/test.model"

	model := &linearModel{w: 0.75}
	r := New(model, testSampler(t, 10), testConf(nil))
	if err := r.Save(filename); err != nil {
		t.Fatalf("%+v", err)
	}

	model2 := &linearModel{w: 0}
	r2 := New(model2, testSampler(t, 10), testConf(nil))
	if err := r2.Load(filename); err != nil {
		t.Fatalf("%+v", err)
	}
	if model2.w != 0.75 {
		t.Fatalf("expected the loaded weight to be 0.75. Got %v", model2.w)
	}
}
