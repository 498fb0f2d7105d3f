package task

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Kind identifies a task family that the sampler can generate.
type Kind int

const (
	Unknown Kind = iota
	Logistic
)

func (k Kind) Format(s fmt.State, c rune) {
	switch k {
	case Logistic:
		fmt.Fprint(s, "logistic")
	default:
		fmt.Fprint(s, "unknown")
	}
}

// Theta parametrizes a task instance: amplitude, slope and shift of the curve.
type Theta [3]float32

// Amplitude returns the vertical scale of the curve.
func (θ Theta) Amplitude() float32 { return θ[0] }

// Slope returns the steepness of the curve.
func (θ Theta) Slope() float32 { return θ[1] }

// Shift returns the horizontal offset of the curve.
func (θ Theta) Shift() float32 { return θ[2] }

func (θ Theta) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "(%v, %v, %v)", θ[0], θ[1], θ[2])
}

// logistic is the supported task function: θ0 / (1 + exp(-θ1·(x-θ2))).
func logistic(x float32, θ Theta) float32 {
	return θ[0] / (1 + math32.Exp(-θ[1]*(x-θ[2])))
}
