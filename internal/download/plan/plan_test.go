package plan

import (
	"errors"
	"testing"

	"github.com/vietddude/archiver/internal/core/domain"
)

func gateways(n int) []domain.Gateway {
	gws := make([]domain.Gateway, n)
	for i := range gws {
		gws[i] = domain.Gateway{Name: string(rune('a' + i)), URLTemplate: "http://gw/{height}"}
	}
	return gws
}

func TestPartition_Scenario(t *testing.T) {
	assignments, err := Partition(domain.HeightRange{Start: 1000, End: 500}, gateways(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := assignments[0].Range; got.Start != 1000 || got.End != 751 {
		t.Errorf("gateway 0 = %v, want 1000..751", got)
	}
	if got := assignments[0].Range.Size(); got != 250 {
		t.Errorf("gateway 0 size = %d, want 250", got)
	}
	if got := assignments[1].Range; got.Start != 750 || got.End != 500 {
		t.Errorf("gateway 1 = %v, want 750..500", got)
	}
	if got := assignments[1].Range.Size(); got != 251 {
		t.Errorf("gateway 1 size = %d, want 251", got)
	}
}

func TestPartition_CoversRangeExactlyOnce(t *testing.T) {
	ranges := []domain.HeightRange{
		{Start: 0, End: 0},
		{Start: 1, End: 0},
		{Start: 9, End: 0},
		{Start: 100, End: 1},
		{Start: 1000, End: 500},
		{Start: 1337, End: 1000},
	}

	for _, r := range ranges {
		for g := 1; g <= 7; g++ {
			assignments, err := Partition(r, gateways(g))
			if err != nil {
				t.Fatalf("Partition(%v, %d) error: %v", r, g, err)
			}
			if len(assignments) != g {
				t.Fatalf("expected %d assignments, got %d", g, len(assignments))
			}

			seen := make(map[int64]int)
			for _, a := range assignments {
				for _, h := range a.Heights() {
					seen[h]++
				}
			}
			if int64(len(seen)) != r.Size() {
				t.Errorf("Partition(%v, %d) covers %d heights, want %d", r, g, len(seen), r.Size())
			}
			for h := r.End; h <= r.Start; h++ {
				if seen[h] != 1 {
					t.Errorf("Partition(%v, %d): height %d covered %d times", r, g, h, seen[h])
				}
			}
		}
	}
}

func TestPartition_Errors(t *testing.T) {
	if _, err := Partition(domain.HeightRange{Start: 10, End: 1}, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("empty gateways: got %v, want configuration error", err)
	}
	if _, err := Partition(domain.HeightRange{Start: 1, End: 10}, gateways(2)); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("ascending range: got %v, want configuration error", err)
	}
}

func TestSplit_Scenario(t *testing.T) {
	heights := domain.HeightRange{Start: 122, End: 100}.Heights()
	chunks := Split(heights, 10)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	sizes := []int{10, 10, 3}
	for i, want := range sizes {
		if len(chunks[i]) != want {
			t.Errorf("chunk %d size = %d, want %d", i, len(chunks[i]), want)
		}
	}
	if chunks[0][0] != 122 || chunks[2][2] != 100 {
		t.Errorf("chunks not in descending order: %v", chunks)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	for _, size := range []int{1, 3, 10, 64} {
		heights := domain.HeightRange{Start: 500, End: 437}.Heights()
		var joined []int64
		for _, chunk := range Split(heights, size) {
			if len(chunk) > size {
				t.Errorf("chunk of %d exceeds size %d", len(chunk), size)
			}
			joined = append(joined, chunk...)
		}
		if len(joined) != len(heights) {
			t.Fatalf("size %d: joined %d heights, want %d", size, len(joined), len(heights))
		}
		for i := range heights {
			if joined[i] != heights[i] {
				t.Fatalf("size %d: position %d = %d, want %d", size, i, joined[i], heights[i])
			}
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := Split(nil, 10); chunks != nil {
		t.Errorf("Split(nil) = %v, want nil", chunks)
	}
}

func TestBuild_InterleavesGateways(t *testing.T) {
	proxy := &domain.Proxy{Address: "http://proxy:8080"}
	batches, err := Build(domain.HeightRange{Start: 129, End: 100}, gateways(2), proxy, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 15 heights per gateway -> 2 batches each
	if len(batches) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(batches))
	}
	wantGateways := []string{"a", "b", "a", "b"}
	for i, b := range batches {
		if b.Gateway.Name != wantGateways[i] {
			t.Errorf("batch %d gateway = %s, want %s", i, b.Gateway.Name, wantGateways[i])
		}
		if b.Proxy != proxy {
			t.Errorf("batch %d lost its proxy", i)
		}
	}

	// Per-gateway order stays descending.
	last := map[string]int64{}
	for _, b := range batches {
		for _, h := range b.Heights {
			if prev, ok := last[b.Gateway.Name]; ok && h >= prev {
				t.Errorf("gateway %s: height %d after %d", b.Gateway.Name, h, prev)
			}
			last[b.Gateway.Name] = h
		}
	}
}
