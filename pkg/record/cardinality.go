package record

import (
	"hash/fnv"

	"github.com/fidde/dstream/pkg/hyperloglog"
)

// maxExactVocab bounds how many distinct category names a nominal
// attribute will index exactly. Below the cap, IndexOfValue assigns
// dense sequential indices and NumValues reports the true count.
// Past it, the attribute's value set is no longer fully enumerated:
// new names are assigned a hashed index instead of growing the vocab
// map forever, and NumValues falls back to an HLL estimate of the
// distinct count feeding the attribute's contribution to grid-space
// size N.
const maxExactVocab = 10000

// overflowBuckets is the index range new, unenumerated values hash
// into once an attribute's vocabulary exceeds maxExactVocab.
const overflowBuckets = 1 << 20

// cardinality tracks one nominal attribute's distinct-value count once
// its vocabulary stops being exactly enumerated, grounded on the
// teacher's HyperLogLog cardinality estimator.
type cardinality struct {
	hll      *hyperloglog.HyperLogLog
	overflow bool
}

func newCardinality() *cardinality {
	return &cardinality{hll: hyperloglog.New(14)}
}

func (c *cardinality) add(name string) {
	c.hll.Add(name)
}

func (c *cardinality) estimate() int {
	return int(c.hll.Count())
}

func hashIndex(name string) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	return maxExactVocab + int(h.Sum32()%overflowBuckets)
}
