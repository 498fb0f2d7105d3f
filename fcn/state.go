package fcn

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// ErrIncompleteState is returned when a parameter set loaded into a network is
// missing parameters the network has. Loads are total, not partial.
var ErrIncompleteState = errors.New("incomplete state")

// StateDict is a named snapshot of every parameter of a network. It has value
// semantics: snapshots are deep copies, and loading one back replaces the
// network's parameters wholesale.
type StateDict map[string]*tensor.Dense

// Clone returns a deep, independent copy.
func (sd StateDict) Clone() StateDict {
	retVal := make(StateDict, len(sd))
	for name, t := range sd {
		retVal[name] = t.Clone().(*tensor.Dense)
	}
	return retVal
}

// Interp linearly interpolates between sd and to, elementwise per parameter
// tensor:
//	new = sd + alpha*(to - sd)
// For alpha = 0 the result equals sd exactly; for alpha = 1 it equals to.
func (sd StateDict) Interp(to StateDict, alpha float32) (StateDict, error) {
	retVal := sd.Clone()
	for name, t := range retVal {
		cand, ok := to[name]
		if !ok {
			return nil, errors.Wrapf(ErrIncompleteState, "interpolation target is missing %q", name)
		}
		// keep the endpoints exact: rounding must not move alpha=0 off sd nor
		// alpha=1 off to
		switch alpha {
		case 0:
			continue
		case 1:
			retVal[name] = cand.Clone().(*tensor.Dense)
			continue
		}
		cur := t.Data().([]float32)
		delta := borrowSlice(len(cur))
		copy(delta, cand.Data().([]float32))
		vecf32.Sub(delta, cur)
		vecf32.Scale(delta, alpha)
		vecf32.Add(cur, delta)
		returnSlice(delta)
	}
	return retVal, nil
}

// names returns the parameter names in a stable order.
func (sd StateDict) names() []string {
	retVal := make([]string, 0, len(sd))
	for name := range sd {
		retVal = append(retVal, name)
	}
	sort.Strings(retVal)
	return retVal
}

func (sd StateDict) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	names := sd.names()
	if err = enc.Encode(names); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err = enc.Encode(sd[name]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (sd *StateDict) GobDecode(p []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(p))
	var names []string
	if err := dec.Decode(&names); err != nil {
		return err
	}
	retVal := make(StateDict, len(names))
	for _, name := range names {
		t := new(tensor.Dense)
		if err := dec.Decode(t); err != nil {
			return err
		}
		retVal[name] = t
	}
	*sd = retVal
	return nil
}
