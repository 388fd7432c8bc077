package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"magnetstream/internal/domain"
	"magnetstream/internal/domain/ports"
)

type fakeHandle struct {
	id      domain.InfoHash
	files   []domain.FileEntry
	stopCnt int32
}

func (f *fakeHandle) InfoHash() domain.InfoHash    { return f.id }
func (f *fakeHandle) Files() []domain.FileEntry    { return f.files }
func (f *fakeHandle) SelectFile(index int) error   { return nil }
func (f *fakeHandle) Stats() domain.TrafficStats   { return domain.TrafficStats{} }
func (f *fakeHandle) NewReader(index int, offset int64) (ports.StreamReader, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeHandle) Stop() error {
	atomic.AddInt32(&f.stopCnt, 1)
	return nil
}

const testID = domain.InfoHash("dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c")

func TestGetOrCreateInvokesFactoryOncePerID(t *testing.T) {
	r := New()
	var calls int32

	session, created, err := r.GetOrCreate(testID, func() (ports.Handle, error) {
		atomic.AddInt32(&calls, 1)
		return &fakeHandle{id: testID}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if !created {
		t.Fatal("first GetOrCreate should report created")
	}
	if session.ID != testID {
		t.Fatalf("session id = %q, want %q", session.ID, testID)
	}

	again, created, err := r.GetOrCreate(testID, func() (ports.Handle, error) {
		atomic.AddInt32(&calls, 1)
		return &fakeHandle{id: testID}, nil
	})
	if err != nil {
		t.Fatalf("second GetOrCreate returned error: %v", err)
	}
	if created {
		t.Fatal("second GetOrCreate should not report created")
	}
	if again != session {
		t.Fatal("second GetOrCreate returned a different session")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("factory invoked %d times, want 1", got)
	}
}

func TestConcurrentGetOrCreateStartsOneEngine(t *testing.T) {
	r := New()
	var calls int32
	release := make(chan struct{})

	const workers = 32
	var wg sync.WaitGroup
	sessions := make([]*Session, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _, errs[i] = r.GetOrCreate(testID, func() (ports.Handle, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return &fakeHandle{id: testID}, nil
			})
		}(i)
	}

	// Let the goroutines pile up on the in-flight creation.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("factory invoked %d times, want 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if sessions[i] != sessions[0] {
			t.Fatalf("worker %d observed a different session", i)
		}
	}
}

func TestFactoryFailurePropagatesAndAllowsRetry(t *testing.T) {
	r := New()
	boom := errors.New("swarm unreachable")

	_, _, err := r.GetOrCreate(testID, func() (ports.Handle, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if _, err := r.Lookup(testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("failed creation left an entry in the registry")
	}

	_, created, err := r.GetOrCreate(testID, func() (ports.Handle, error) {
		return &fakeHandle{id: testID}, nil
	})
	if err != nil {
		t.Fatalf("retry after failure returned error: %v", err)
	}
	if !created {
		t.Fatal("retry after failure should create a fresh session")
	}
}

func TestRemoveStopsHandle(t *testing.T) {
	r := New()
	h := &fakeHandle{id: testID}
	if _, _, err := r.GetOrCreate(testID, func() (ports.Handle, error) { return h, nil }); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	if !r.Remove(testID) {
		t.Fatal("Remove returned false for an existing session")
	}
	if got := atomic.LoadInt32(&h.stopCnt); got != 1 {
		t.Fatalf("Stop called %d times, want 1", got)
	}
	if _, err := r.Lookup(testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("session still present after Remove")
	}
	if r.Remove(testID) {
		t.Fatal("double Remove should return false")
	}
}

func TestShutdownStopsAllHandles(t *testing.T) {
	r := New()
	handles := []*fakeHandle{
		{id: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{id: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	}
	for _, h := range handles {
		h := h
		if _, _, err := r.GetOrCreate(h.id, func() (ports.Handle, error) { return h, nil }); err != nil {
			t.Fatalf("GetOrCreate returned error: %v", err)
		}
	}

	r.Shutdown()

	if r.Len() != 0 {
		t.Fatalf("registry holds %d sessions after Shutdown, want 0", r.Len())
	}
	for _, h := range handles {
		if got := atomic.LoadInt32(&h.stopCnt); got != 1 {
			t.Fatalf("handle %s stopped %d times, want 1", h.id, got)
		}
	}
}

func TestListIsOrderedByCreation(t *testing.T) {
	r := New()
	ids := []domain.InfoHash{
		"cccccccccccccccccccccccccccccccccccccccc",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
	for _, id := range ids {
		id := id
		if _, _, err := r.GetOrCreate(id, func() (ports.Handle, error) {
			return &fakeHandle{id: id}, nil
		}); err != nil {
			t.Fatalf("GetOrCreate returned error: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	listed := r.List()
	if len(listed) != 2 {
		t.Fatalf("List returned %d sessions, want 2", len(listed))
	}
	if listed[0].ID != ids[0] || listed[1].ID != ids[1] {
		t.Fatalf("List order = [%s, %s], want creation order", listed[0].ID, listed[1].ID)
	}
}
