package reptile

import (
	"github.com/gorgonia/reptile/fcn"
)

// Config configures a Reptile run. The numeric fields are fixed for the whole
// run; the extension fields plug in observability.
type Config struct {
	Name string

	InnerStepSize   float64 // learning rate of the inner-loop gradient steps
	InnerBatch      int     // passes over permuted mini-batches per outer iteration
	OuterStepSize   float64 // maximum interpolation coefficient
	OuterIterations int
	MetaBatchSize   int // mini-batch size of the inner gradient steps

	// used only by the evaluation path
	EvalIterations int
	EvalBatchSize  int

	// extensions
	Metrics Metrics // nil means no metrics are recorded
	Seed    int64   // seed for the inner-loop permutations. 0 means wallclock
}

// DefaultConf returns the configuration of the reference experiment.
func DefaultConf() Config {
	return Config{
		InnerStepSize:   0.02,
		InnerBatch:      5,
		OuterStepSize:   0.1,
		OuterIterations: 1000,
		MetaBatchSize:   10,
		EvalIterations:  32,
		EvalBatchSize:   10,
	}
}

func (conf Config) IsValid() bool {
	return conf.InnerStepSize > 0 &&
		conf.OuterStepSize > 0 &&
		conf.InnerBatch >= 1 &&
		conf.OuterIterations >= 0 &&
		conf.MetaBatchSize >= 1 &&
		conf.EvalIterations >= 0 &&
		conf.EvalBatchSize >= 1
}

// Approximator is a differentiable model mapping batches of scalar inputs to
// scalar outputs. Any architecture satisfying it is substitutable; *fcn.FCN is
// the reference implementation.
type Approximator interface {
	// Predict evaluates the model with no side effects.
	Predict(xs []float32) ([]float32, error)

	// Loss resets accumulated gradients and returns the mean squared error
	// of the model's estimate against ys.
	Loss(xs, ys []float32) (float32, error)

	// Backward resets accumulated gradients, then computes fresh ones via
	// reverse-mode differentiation of the batch loss, which it returns.
	Backward(xs, ys []float32) (float32, error)

	// ApplyGrad updates every parameter by -lr times its accumulated gradient.
	ApplyGrad(lr float32)

	// ZeroGrad resets accumulated gradients.
	ZeroGrad()

	// State returns a deep snapshot of all parameters; SetState loads a total
	// replacement. Together they form the engine's restore points.
	State() fcn.StateDict
	SetState(fcn.StateDict) error
}

// Metrics is a sink for named scalar time series. Implementations must not
// block or fail the run; recording is fire and forget.
type Metrics interface {
	Record(series string, step int, value float32)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Record(series string, step int, value float32) {}

// Frame is one step of an evaluation trace, ready for rendering.
type Frame interface {
	Name() string
	Step() int

	Space() []float32
	Targets() []float32
	Estimate() []float32
}

// TraceEncoder encodes an evaluation trace as whatever.
//
// An example TraceEncoder is the plot.Encoder, which renders the trace as a
// GIF. Another example would be a logger.
type TraceEncoder interface {
	Encode(f Frame) error
	Flush() error
}
