package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Table is a convolution connection table: each entry pairs an input feature
// index with an output feature index. Entry k uses kernel slice k.
type Table [][2]int

// FullTable connects every input feature to every output feature.
func FullTable(in, out int) Table {
	t := make(Table, 0, in*out)
	for j := 0; j < out; j++ {
		for i := 0; i < in; i++ {
			t = append(t, [2]int{i, j})
		}
	}
	return t
}

// OneToOneTable connects input feature i to output feature i.
func OneToOneTable(n int) Table {
	t := make(Table, n)
	for i := range t {
		t[i] = [2]int{i, i}
	}
	return t
}

// RandomTable connects each output feature to fanin distinct input features
// chosen at random, balancing how often each input is used.
func RandomTable(in, out, fanin int, r *rand.Rand) (Table, error) {
	if fanin <= 0 || fanin > in {
		return nil, errors.Wrapf(ErrInvalidTable, "fan-in %d must be in [1, %d]", fanin, in)
	}
	usage := make([]int, in)
	t := make(Table, 0, out*fanin)
	for j := 0; j < out; j++ {
		picked := make(map[int]bool, fanin)
		for len(picked) < fanin {
			// least used inputs first, ties broken at random
			best, bestUse := -1, math.MaxInt
			for _, i := range r.Perm(in) {
				if !picked[i] && usage[i] < bestUse {
					best, bestUse = i, usage[i]
				}
			}
			picked[best] = true
			usage[best]++
			t = append(t, [2]int{best, j})
		}
	}
	return t, nil
}

// TableFromTensor reads a table from an N×2 tensor of non-negative integers.
func TableFromTensor(t *tensor.Tensor) (Table, error) {
	if t.Order() != 2 || t.Dim(1) != 2 {
		return nil, errors.Wrapf(ErrInvalidTable, "expected an Nx2 table, got shape %v", t.Shape())
	}
	tab := make(Table, t.Dim(0))
	for k := range tab {
		for c := 0; c < 2; c++ {
			v := t.At(k, c)
			if v < 0 || v != math.Trunc(v) {
				return nil, errors.Wrapf(ErrInvalidTable, "entry %d holds %g, expected a non-negative integer", k, v)
			}
			tab[k][c] = int(v)
		}
	}
	return tab, nil
}

// Tensor returns the table as an N×2 tensor.
func (t Table) Tensor() *tensor.Tensor {
	out := tensor.Zeros(tensor.Shape{len(t), 2})
	for k, e := range t {
		out.Set(float64(e[0]), k, 0)
		out.Set(float64(e[1]), k, 1)
	}
	return out
}

// MaxIn returns the largest input index, or -1 for an empty table.
func (t Table) MaxIn() int {
	m := -1
	for _, e := range t {
		m = max(m, e[0])
	}
	return m
}

// MaxOut returns the largest output index, or -1 for an empty table.
func (t Table) MaxOut() int {
	m := -1
	for _, e := range t {
		m = max(m, e[1])
	}
	return m
}

// FanIn returns, per output feature, the number of entries landing on it.
func (t Table) FanIn() []int {
	f := make([]int, t.MaxOut()+1)
	for _, e := range t {
		f[e[1]]++
	}
	return f
}

// validate checks structural invariants. outputs > 0 declares the expected
// output thickness.
func (t Table) validate(outputs int) error {
	if len(t) == 0 {
		return errors.Wrap(ErrInvalidTable, "empty table")
	}
	for k, e := range t {
		if e[0] < 0 || e[1] < 0 {
			return errors.Wrapf(ErrInvalidTable, "entry %d (%d, %d) has a negative index", k, e[0], e[1])
		}
		if outputs > 0 && e[1] >= outputs {
			return errors.Wrapf(ErrInvalidTable, "entry %d targets output %d but only %d outputs are declared",
				k, e[1], outputs)
		}
	}
	return nil
}

// unusedInputs returns the input indices below MaxIn never referenced.
func (t Table) unusedInputs() []int {
	used := make([]bool, t.MaxIn()+1)
	for _, e := range t {
		used[e[0]] = true
	}
	var unused []int
	for i, u := range used {
		if !u {
			unused = append(unused, i)
		}
	}
	return unused
}
