// Package reptile implements the Reptile meta-learning algorithm: it learns an
// initialization for a function approximator such that a few gradient steps on
// a freshly sampled task yield a good task-specific model.
//
// The outer loop repeatedly snapshots the meta-parameters, adapts a working
// copy to a new task with plain SGD, then moves the meta-parameters a cooling
// fraction of the way toward the adapted weights.
package reptile

import (
	"encoding/gob"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorgonia/reptile/fcn"
	"github.com/gorgonia/reptile/task"
	"github.com/pkg/errors"
)

// Reptile is the top level structure and the entry point of the API. It owns
// the meta-parameters: the model it wraps is mutated only by the engine, and
// only the interpolation step at the end of an outer iteration makes an
// update permanent.
type Reptile struct {
	Config
	model   Approximator
	sampler *task.Sampler
	metrics Metrics

	innerStep float32
	outerStep float32
	rnd       *rand.Rand

	// training run state, reset by Reset
	currentLoss  float32
	currentBatch int
}

// New constructs a Reptile engine around a model and a task sampler.
func New(model Approximator, sampler *task.Sampler, conf Config) *Reptile {
	if !conf.IsValid() {
		panic("Config is not valid. Unable to proceed")
	}
	if conf.MetaBatchSize > sampler.Len() {
		panic("MetaBatchSize exceeds the sample space. Unable to proceed")
	}

	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	metrics := conf.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &Reptile{
		Config:    conf,
		model:     model,
		sampler:   sampler,
		metrics:   metrics,
		innerStep: float32(conf.InnerStepSize),
		outerStep: float32(conf.OuterStepSize),
		rnd:       rand.New(rand.NewSource(seed)),
	}
}

// Model returns the wrapped approximator. Its parameters hold the learned
// meta-initialization once Train returns.
func (r *Reptile) Model() Approximator { return r.model }

// Reset zeroes the model gradients and the accumulated loss counters. It is
// called at the start of every training run.
func (r *Reptile) Reset() {
	r.model.ZeroGrad()
	r.currentLoss = 0
	r.currentBatch = 0
}

// alpha is the linear cooling schedule: the interpolation strength decays
// from OuterStepSize at iteration 0 toward 0 over the run.
func (r *Reptile) alpha(iter int) float32 {
	return r.outerStep * (1 - float32(iter)/float32(r.OuterIterations))
}

// Train runs the outer meta-training loop. Each outer iteration samples a
// fresh task, adapts the current weights to it with SGD, then interpolates the
// meta-parameters toward the adapted weights. When Train returns, the model
// holds the learned initialization.
func (r *Reptile) Train(k task.Kind) error {
	r.Reset()

	n := r.sampler.Len()
	for iter := 0; iter < r.OuterIterations; iter++ {
		currentWeights := r.model.State()

		targets, θ, err := r.sampler.Sample(k)
		if err != nil {
			return err
		}

		for inner := 0; inner < r.InnerBatch; inner++ {
			for batch := 0; batch < n; batch += r.MetaBatchSize {
				// a fresh permutation per window, sliced at the window offset.
				// This matches the reference: the batch offset only bounds the
				// window size, it does not walk a single permutation.
				perm := r.rnd.Perm(n)
				end := batch + r.MetaBatchSize
				if end > n {
					end = n
				}
				xs, ys := r.sampler.Gather(perm[batch:end], targets)

				batchLoss, err := r.model.Backward(xs, ys)
				if err != nil {
					return errors.WithMessage(err, "inner loop failed")
				}
				r.model.ApplyGrad(r.innerStep)

				r.currentLoss += batchLoss
				r.currentBatch++
			}
		}

		candidateWeights := r.model.State()
		newWeights, err := currentWeights.Interp(candidateWeights, r.alpha(iter))
		if err != nil {
			return errors.WithMessage(err, "meta update failed")
		}
		if err := r.model.SetState(newWeights); err != nil {
			return errors.WithMessage(err, "meta update failed")
		}

		meanLoss := r.currentLoss / float32(r.currentBatch)
		r.metrics.Record("train/loss", iter, meanLoss)
		log.Printf("outer iteration %d/%d\tθ %v\tloss %v", iter, r.OuterIterations, θ, meanLoss)
	}
	return nil
}

// Predict is a pure forward pass through the model.
func (r *Reptile) Predict(xs []float32) ([]float32, error) { return r.model.Predict(xs) }

// Loss resets the model gradients and returns the mean squared error over the
// batch.
func (r *Reptile) Loss(xs, ys []float32) (float32, error) { return r.model.Loss(xs, ys) }

// Eval measures few-shot adaptation quality starting from the learned
// initialization. It draws MetaBatchSize points from the task, adapts on them
// for gradientSteps SGD steps, and records the model's estimate over the whole
// sample space before and after every step: the returned trace has
// gradientSteps+1 entries. The returned loss is the absolute loss delta scaled
// by evalBatchSize.
//
// Eval is non-destructive: the meta-parameters are restored before it returns.
func (r *Reptile) Eval(targets []float32, evalBatchSize, gradientSteps int, innerStepSize float64) (estimate [][]float32, evaluationLoss float32, err error) {
	xs, ys, err := r.sampler.Points(targets, r.MetaBatchSize)
	if err != nil {
		return nil, 0, err
	}

	space := r.sampler.Space()
	base, err := r.model.Predict(space)
	if err != nil {
		return nil, 0, err
	}
	estimate = append(estimate, base)

	metaWeights := r.model.State()
	defer func() {
		if rerr := r.model.SetState(metaWeights); rerr != nil && err == nil {
			estimate, evaluationLoss, err = nil, 0, errors.WithMessage(rerr, "restoring meta weights")
		}
	}()

	metaLoss, err := r.model.Loss(xs, ys)
	if err != nil {
		return nil, 0, err
	}

	for step := 0; step < gradientSteps; step++ {
		if _, err = r.model.Backward(xs, ys); err != nil {
			return nil, 0, err
		}
		r.model.ApplyGrad(float32(innerStepSize))

		var est []float32
		if est, err = r.model.Predict(space); err != nil {
			return nil, 0, err
		}
		estimate = append(estimate, est)
	}

	estimateLoss, err := r.model.Loss(xs, ys)
	if err != nil {
		return nil, 0, err
	}
	evaluationLoss = math32.Abs(metaLoss-estimateLoss) / float32(evalBatchSize)
	return estimate, evaluationLoss, nil
}

// Save persists the meta-parameters into filename.
func (r *Reptile) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(r.model.State())
}

// Load restores previously saved meta-parameters.
func (r *Reptile) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	var sd fcn.StateDict
	dec := gob.NewDecoder(f)
	if err = dec.Decode(&sd); err != nil {
		return errors.WithStack(err)
	}
	return r.model.SetState(sd)
}
