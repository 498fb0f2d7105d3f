package task

import (
	"math/rand"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedKind is returned when a task family the sampler cannot generate is requested.
	ErrUnsupportedKind = errors.New("unsupported task kind")

	// ErrInsufficientSamples is returned when more points are requested than the sample space holds.
	ErrInsufficientSamples = errors.New("insufficient samples")
)

// Space generates count evenly spaced values spanning [-radius, radius].
// It is the fixed domain over which every task of a run is evaluated.
func Space(radius float32, count int) ([]float32, error) {
	if radius <= 0 {
		return nil, errors.Errorf("sample radius must be positive. Got %v", radius)
	}
	if count < 2 {
		return nil, errors.Errorf("sample count must be at least 2. Got %d", count)
	}

	retVal := make([]float32, count)
	step := 2 * radius / float32(count-1)
	for i := range retVal {
		retVal[i] = -radius + float32(i)*step
	}
	retVal[count-1] = radius // don't let accumulated rounding move the endpoint
	return retVal, nil
}

// Sampler draws task instances and point subsets over a fixed sample space.
//
// The sample space is constructed once and read-only thereafter. A Sampler is
// not safe for concurrent use; independent meta-training runs should each own
// their own Sampler.
type Sampler struct {
	space []float32
	uni   *rng.UniformGenerator
	rnd   *rand.Rand
}

// NewSampler creates a sampler over the given sample space. The seed drives
// both θ draws and point selection, so two samplers with the same seed and
// space generate identical tasks.
func NewSampler(space []float32, seed int64) *Sampler {
	return &Sampler{
		space: space,
		uni:   rng.NewUniformGenerator(seed),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Space returns the sample space. The returned slice is owned by the Sampler
// and must not be mutated.
func (s *Sampler) Space() []float32 { return s.space }

// Len returns the size of the sample space.
func (s *Sampler) Len() int { return len(s.space) }

// Sample draws a fresh task instance: θ is drawn uniformly with amplitude and
// slope in [1, 10] and shift in [-1, 1], and the task function is evaluated
// elementwise over the whole sample space.
func (s *Sampler) Sample(k Kind) (targets []float32, θ Theta, err error) {
	if k != Logistic {
		return nil, θ, errors.Wrapf(ErrUnsupportedKind, "cannot sample %s task", k)
	}

	θ = Theta{
		s.uni.Float32Range(1, 10),
		s.uni.Float32Range(1, 10),
		s.uni.Float32Range(-1, 1),
	}

	targets = make([]float32, len(s.space))
	for i, x := range s.space {
		targets[i] = logistic(x, θ)
	}
	return targets, θ, nil
}

// Points draws batchSize distinct indices without replacement and returns the
// sample-space values at those indices along with the corresponding targets.
func (s *Sampler) Points(targets []float32, batchSize int) (xs, ys []float32, err error) {
	if batchSize > len(s.space) {
		return nil, nil, errors.Wrapf(ErrInsufficientSamples, "requested %d of %d points", batchSize, len(s.space))
	}
	idx := s.rnd.Perm(len(s.space))[:batchSize]
	xs, ys = s.Gather(idx, targets)
	return xs, ys, nil
}

// Perm returns a fresh random permutation of the sample-space indices.
func (s *Sampler) Perm() []int { return s.rnd.Perm(len(s.space)) }

// Gather returns the sample-space values and the targets at the given indices.
// The mini-batch inputs are literal sample-space positions; the targets are the
// task-generated values at those same positions.
func (s *Sampler) Gather(idx []int, targets []float32) (xs, ys []float32) {
	xs = make([]float32, len(idx))
	ys = make([]float32, len(idx))
	for i, j := range idx {
		xs[i] = s.space[j]
		ys[i] = targets[j]
	}
	return xs, ys
}
