package reptile

// traceFrame is the default Frame implementation, one adaptation step of an
// evaluation trace.
type traceFrame struct {
	name     string
	step     int
	space    []float32
	targets  []float32
	estimate []float32
}

func (f traceFrame) Name() string        { return f.name }
func (f traceFrame) Step() int           { return f.step }
func (f traceFrame) Space() []float32    { return f.space }
func (f traceFrame) Targets() []float32  { return f.targets }
func (f traceFrame) Estimate() []float32 { return f.estimate }

// MakeFrame wraps one step of an evaluation trace as a Frame.
func MakeFrame(name string, step int, space, targets, estimate []float32) Frame {
	return traceFrame{
		name:     name,
		step:     step,
		space:    space,
		targets:  targets,
		estimate: estimate,
	}
}

// EncodeTrace feeds every step of an evaluation trace, as returned by Eval,
// into enc. The caller remains responsible for flushing the encoder.
func EncodeTrace(enc TraceEncoder, name string, space, targets []float32, trace [][]float32) error {
	for step, estimate := range trace {
		if err := enc.Encode(MakeFrame(name, step, space, targets, estimate)); err != nil {
			return err
		}
	}
	return nil
}
