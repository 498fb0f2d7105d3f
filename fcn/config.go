package fcn

// Config configures the fully connected network.
type Config struct {
	Width  int // hidden layer width
	Inputs int // input features per point
	Output int // output features per point
}

// DefaultConf returns the configuration of the reference architecture: scalar
// in, scalar out, hidden width w.
func DefaultConf(w int) Config {
	return Config{
		Width:  w,
		Inputs: 1,
		Output: 1,
	}
}

func (conf Config) IsValid() bool {
	return conf.Width >= 1 &&
		conf.Inputs >= 1 &&
		conf.Output >= 1
}

// dims returns the layer sizes, input first.
func (conf Config) dims() []int {
	return []int{conf.Inputs, conf.Width, conf.Width, conf.Width, conf.Output}
}
