package scan

import "fmt"

// SmallScanThreshold is the row count below which a scan always runs as a
// single partition.
const SmallScanThreshold = 128

// Partition is one contiguous window of the collection.
type Partition struct {
	Index int
	Skip  int64
	// Limit bounds the window. 0 means open-ended.
	Limit int64
	// Expected is the planned row count, used to size buffers.
	Expected int64
}

func (p Partition) String() string {
	if p.Limit == 0 {
		return fmt.Sprintf("partition %d [%d, end)", p.Index, p.Skip)
	}
	return fmt.Sprintf("partition %d [%d, %d)", p.Index, p.Skip, p.Skip+p.Limit)
}

// Plan is an ordered list of partitions covering [0, nRows).
type Plan []Partition

// NewPlan splits nRows into threads contiguous windows of nRows/threads rows.
// The last partition also takes the remainder. When bounded is false the
// last partition is open-ended, so documents beyond the count estimate are
// still read. A bounded plan for zero rows is empty.
func NewPlan(nRows int64, threads int, bounded bool) Plan {
	if nRows < 0 {
		nRows = 0
	}
	if bounded && nRows == 0 {
		return Plan{}
	}
	if threads < 1 || nRows < SmallScanThreshold {
		threads = 1
	}
	if int64(threads) > nRows && nRows > 0 {
		threads = int(nRows)
	}

	perThread := nRows / int64(threads)
	plan := make(Plan, threads)
	for i := range plan {
		p := Partition{
			Index:    i,
			Skip:     int64(i) * perThread,
			Limit:    perThread,
			Expected: perThread,
		}
		if i == threads-1 {
			p.Limit = nRows - p.Skip
			p.Expected = p.Limit
			if !bounded {
				p.Limit = 0
			}
		}
		plan[i] = p
	}
	return plan
}

// Rows returns the number of rows the plan bounds, or -1 if it is
// open-ended.
func (p Plan) Rows() int64 {
	var n int64
	for _, part := range p {
		if part.Limit == 0 {
			return -1
		}
		n += part.Limit
	}
	return n
}
