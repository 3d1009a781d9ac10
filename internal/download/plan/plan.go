// Package plan splits a height range into per-gateway sub-ranges and
// fixed-size download batches.
package plan

import (
	"github.com/vietddude/archiver/internal/core/domain"
)

// DefaultBatchSize is the number of heights per batch when none is configured.
const DefaultBatchSize = 10

// Assignment is the sub-range owned by one gateway.
type Assignment struct {
	Gateway domain.Gateway
	Range   domain.HeightRange
	Empty   bool // true when the gateway received no heights
}

// Heights returns the assignment's heights, descending.
func (a Assignment) Heights() []int64 {
	if a.Empty {
		return nil
	}
	return a.Range.Heights()
}

// Partition splits r across the gateways. Every gateway gets
// floor(size/G) heights counted down from the top; the last gateway also
// absorbs the remainder so the union is exactly [End, Start].
func Partition(r domain.HeightRange, gateways []domain.Gateway) ([]Assignment, error) {
	if len(gateways) == 0 {
		return nil, domain.ConfigErrorf("gateway table is empty")
	}
	if r.Start < r.End {
		return nil, domain.ConfigErrorf("start height %d is below end height %d", r.Start, r.End)
	}

	g := int64(len(gateways))
	total := r.Size()
	span := total / g
	remainder := total % g

	assignments := make([]Assignment, 0, len(gateways))
	for i, gw := range gateways {
		top := r.Start - int64(i)*span
		count := span
		if i == len(gateways)-1 {
			count += remainder
		}

		a := Assignment{Gateway: gw}
		if count == 0 {
			a.Empty = true
			a.Range = domain.HeightRange{Start: top, End: top + 1}
		} else {
			a.Range = domain.HeightRange{Start: top, End: top - count + 1}
		}
		assignments = append(assignments, a)
	}

	return assignments, nil
}

// Split slices a descending height sequence into consecutive chunks of at
// most size heights. The last chunk may be shorter.
func Split(heights []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(heights) == 0 {
		return nil
	}

	chunks := make([][]int64, 0, (len(heights)+size-1)/size)
	for start := 0; start < len(heights); start += size {
		end := min(start+size, len(heights))
		chunk := make([]int64, end-start)
		copy(chunk, heights[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Build partitions r, batches every gateway's sub-range and interleaves the
// batches round-robin across gateways. Within one gateway the batches keep
// strictly descending order.
func Build(
	r domain.HeightRange,
	gateways []domain.Gateway,
	proxy *domain.Proxy,
	batchSize int,
) ([]domain.DownloadBatch, error) {
	assignments, err := Partition(r, gateways)
	if err != nil {
		return nil, err
	}

	perGateway := make([][]domain.DownloadBatch, len(assignments))
	longest := 0
	for i, a := range assignments {
		for _, chunk := range Split(a.Heights(), batchSize) {
			perGateway[i] = append(perGateway[i], domain.DownloadBatch{
				Gateway: a.Gateway,
				Proxy:   proxy,
				Heights: chunk,
			})
		}
		longest = max(longest, len(perGateway[i]))
	}

	var batches []domain.DownloadBatch
	for round := 0; round < longest; round++ {
		for i := range perGateway {
			if round < len(perGateway[i]) {
				batches = append(batches, perGateway[i][round])
			}
		}
	}
	return batches, nil
}
