package async

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// fakeProcessor fails paths containing "bad" and blocks while gate is open.
type fakeProcessor struct {
	gate     chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeProcessor) ProcessImage(ctx context.Context, path, _ string) (*receipt.Receipt, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
	} else {
		time.Sleep(5 * time.Millisecond)
	}

	r := receipt.New(path, "")
	if strings.Contains(path, "bad") {
		return r, errors.New("unreadable")
	}
	r.Status = constants.StatusSuccess
	return r, nil
}

var _ = Describe("ProcessorQueue", func() {
	It("processes every job and reports results", func() {
		proc := &fakeProcessor{}
		var (
			mu      sync.Mutex
			results []Result
		)
		q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(2), WithResultHandler(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		}))

		ctx := context.Background()
		for _, p := range []string{"a.jpg", "bad.jpg", "b.jpg", "c.jpg", "d.jpg"} {
			Expect(q.Enqueue(ctx, NewJob(p, ""))).To(Succeed())
		}
		Expect(q.Shutdown(ctx)).To(Succeed())

		Expect(results).To(HaveLen(5))
		failed := 0
		for _, r := range results {
			Expect(r.Receipt).NotTo(BeNil())
			if r.Err != nil {
				failed++
				Expect(r.Job.Path).To(Equal("bad.jpg"))
			}
		}
		Expect(failed).To(Equal(1))
		Expect(proc.maxSeen.Load()).To(BeNumerically("<=", 2))
	})

	It("refuses jobs after shutdown", func() {
		q := NewProcessorQueue(&fakeProcessor{}, nil)
		Expect(q.Shutdown(context.Background())).To(Succeed())
		Expect(q.Enqueue(context.Background(), NewJob("late.jpg", ""))).To(MatchError(ErrQueueClosed))
		Expect(q.Shutdown(context.Background())).To(Succeed())
	})

	It("stops waiting when the shutdown context ends", func() {
		proc := &fakeProcessor{gate: make(chan struct{})}
		q := NewProcessorQueue(proc, nil, WithWorkers(1))
		Expect(q.Enqueue(context.Background(), NewJob("slow.jpg", ""))).To(Succeed())
		Eventually(proc.calls.Load).Should(Equal(int32(1)))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(q.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))
		close(proc.gate)
	})
})

var _ = Describe("ProcessBatch", func() {
	It("keeps job order and respects the limit", func() {
		proc := &fakeProcessor{}
		jobs := []Job{NewJob("1.jpg", ""), NewJob("bad-2.jpg", ""), NewJob("3.jpg", ""), NewJob("4.jpg", ""), NewJob("5.jpg", "")}

		results := ProcessBatch(context.Background(), proc, jobs, 2, nil)
		Expect(results).To(HaveLen(5))
		for i, r := range results {
			Expect(r.Job.ID).To(Equal(jobs[i].ID))
			Expect(r.Receipt).NotTo(BeNil())
		}
		Expect(results[1].Err).To(HaveOccurred())
		Expect(results[0].Receipt.Status).To(Equal(constants.StatusSuccess))
		Expect(proc.maxSeen.Load()).To(BeNumerically("<=", 2))
	})

	It("reports jobs that never started when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		proc := &fakeProcessor{}
		results := ProcessBatch(ctx, proc, []Job{NewJob("1.jpg", ""), NewJob("2.jpg", "")}, 1, nil)
		for _, r := range results {
			Expect(r.Err).To(MatchError(context.Canceled))
			Expect(r.Receipt).To(BeNil())
		}
		Expect(proc.calls.Load()).To(BeZero())
	})
})
