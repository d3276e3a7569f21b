package runner

import "fmt"

// Span is an inclusive range of positions in the operation list.
type Span struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into spans of at most batchSize positions.
func SplitRange(from, to, batchSize uint64) ([]Span, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to must be >= from")
	}

	spans := make([]Span, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		spans = append(spans, Span{From: start, To: end})
		if end == to {
			return spans, nil
		}
	}
}
