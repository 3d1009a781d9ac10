package fetch

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/infra/blockstore"
	"github.com/vietddude/archiver/internal/infra/storage/memory"
)

type mockGetter struct {
	calls   atomic.Int32
	payload []byte
	err     error
}

func (m *mockGetter) FetchBlock(ctx context.Context, gw domain.Gateway, height int64) ([]byte, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

var testGateway = domain.Gateway{Name: "mock", URLTemplate: "http://mock/{height}"}

func newStore(t *testing.T, r domain.HeightRange) *blockstore.Store {
	t.Helper()
	s, err := blockstore.NewStore(t.TempDir(), r, false)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestWorker_SavesBlock(t *testing.T) {
	r := domain.HeightRange{Start: 10, End: 1}
	store := newStore(t, r)
	getter := &mockGetter{payload: []byte(`{"height":5}`)}
	ledger := memory.NewFailureLedger()

	w := NewWorker(getter, store, ledger, r, nil, domain.NewCancelFlag())
	res := w.Fetch(context.Background(), testGateway, 5)

	if res.Failed || res.Skipped || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, err := store.Load(5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, getter.payload) {
		t.Errorf("stored %s, want %s", got, getter.payload)
	}
}

func TestWorker_IdempotentOverwrite(t *testing.T) {
	r := domain.HeightRange{Start: 10, End: 1}
	store := newStore(t, r)
	getter := &mockGetter{payload: []byte(`{"height":7,"txs":[]}`)}
	w := NewWorker(getter, store, nil, r, nil, domain.NewCancelFlag())

	w.Fetch(context.Background(), testGateway, 7)
	first, _ := store.Load(7)
	w.Fetch(context.Background(), testGateway, 7)
	second, _ := store.Load(7)

	if !bytes.Equal(first, second) {
		t.Errorf("content changed between runs: %s vs %s", first, second)
	}
	if getter.calls.Load() != 2 {
		t.Errorf("expected two fetches, got %d", getter.calls.Load())
	}
}

func TestWorker_FailureReturnsHeight(t *testing.T) {
	r := domain.HeightRange{Start: 10, End: 1}
	getter := &mockGetter{err: errors.New("http 502: bad gateway")}
	ledger := memory.NewFailureLedger()
	proxy := &domain.Proxy{Address: "http://proxy:3128"}

	w := NewWorker(getter, newStore(t, r), ledger, r, proxy, domain.NewCancelFlag())
	res := w.Fetch(context.Background(), testGateway, 3)

	if !res.Failed || res.Height != 3 {
		t.Fatalf("expected failure at height 3, got %+v", res)
	}

	var fetchErr *domain.FetchError
	if !errors.As(res.Err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", res.Err)
	}
	if fetchErr.Gateway != "mock" || fetchErr.Proxy != "http://proxy:3128" {
		t.Errorf("FetchError missing context: %+v", fetchErr)
	}

	entries, _ := ledger.List(context.Background(), r)
	if len(entries) != 1 || entries[0].Height != 3 {
		t.Errorf("ledger entries = %+v", entries)
	}
}

func TestWorker_SuccessResolvesLedger(t *testing.T) {
	r := domain.HeightRange{Start: 10, End: 1}
	ledger := memory.NewFailureLedger()
	ledger.Record(context.Background(), r, &domain.FailedHeight{Height: 4})

	w := NewWorker(&mockGetter{payload: []byte(`{}`)}, newStore(t, r), ledger, r, nil, domain.NewCancelFlag())
	w.Fetch(context.Background(), testGateway, 4)

	if n, _ := ledger.Count(context.Background(), r); n != 0 {
		t.Errorf("ledger count = %d, want 0", n)
	}
}

func TestWorker_CancelledSkipsNetwork(t *testing.T) {
	r := domain.HeightRange{Start: 10, End: 1}
	getter := &mockGetter{payload: []byte(`{}`)}
	cancel := domain.NewCancelFlag()
	cancel.Set()

	w := NewWorker(getter, newStore(t, r), nil, r, nil, cancel)
	res := w.Fetch(context.Background(), testGateway, 9)

	if !res.Skipped || res.Failed {
		t.Errorf("expected skipped non-failure, got %+v", res)
	}
	if getter.calls.Load() != 0 {
		t.Errorf("expected no network call, got %d", getter.calls.Load())
	}
}
