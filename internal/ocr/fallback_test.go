package ocr

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

const goodText = "COSTCO WHOLESALE\nTOTAL 12.99"

var _ = Describe("FallbackEngine", func() {
	var (
		primary  *fakeBackend
		fallback *fakeBackend
		engine   *FallbackEngine
		res      receipt.ExtractedText
		err      error
	)

	fastPolicy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}

	BeforeEach(func() {
		primary = &fakeBackend{name: "primary"}
		fallback = &fakeBackend{name: "fallback", results: []fakeResult{{text: goodText}}}
	})

	JustBeforeEach(func() {
		engine = NewFallbackEngine(primary, fallback, WithRetryPolicy(fastPolicy), WithAttemptTimeout(time.Second))
		res, err = engine.Extract(context.Background(), receipt.Image{Data: []byte{1}}, Hints{})
	})

	When("the primary succeeds", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{text: goodText}}
		})

		It("returns primary text without touching the fallback", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Content).To(Equal(goodText))
			Expect(res.Backend).To(Equal("primary"))
			Expect(res.Attempts).To(Equal(1))
			Expect(fallback.Calls()).To(BeZero())
		})
	})

	When("the primary fails transiently and then recovers", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{
				{err: Transient(errors.New("connection reset"))},
				{text: goodText},
			}
		})

		It("retries the primary", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.Calls()).To(Equal(2))
			Expect(res.Attempts).To(Equal(2))
			Expect(fallback.Calls()).To(BeZero())
		})
	})

	When("the primary keeps failing transiently", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{err: Transient(errors.New("timeout"))}}
		})

		It("stops after the attempt limit and falls back", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.Calls()).To(Equal(3))
			Expect(fallback.Calls()).To(Equal(1))
			Expect(res.Backend).To(Equal("fallback"))
			Expect(res.Attempts).To(Equal(4))
		})
	})

	When("the primary fails permanently", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{err: errors.New("bad image")}}
		})

		It("does not retry", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.Calls()).To(Equal(1))
			Expect(fallback.Calls()).To(Equal(1))
		})
	})

	When("the primary returns insufficient text", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{text: "  ab  "}}
		})

		It("falls back immediately", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.Calls()).To(Equal(1))
			Expect(res.Content).To(Equal(goodText))
		})
	})

	When("both backends fail", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{err: errors.New("primary down")}}
			fallback.results = []fakeResult{{text: ""}}
		})

		It("reports the engine as unavailable", func() {
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, common.ErrEngineUnavailable)).To(BeTrue())
			Expect(errors.Is(err, common.ErrInsufficientText)).To(BeTrue())
			Expect(common.IsCode(err, common.CodeEngineUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("primary down"))
		})
	})

	When("the primary panics", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{crash: "backend crashed"}}
		})

		It("counts the panic as a failed attempt and uses the fallback", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.Calls()).To(Equal(1))
			Expect(fallback.Calls()).To(Equal(1))
			Expect(res.Backend).To(Equal("fallback"))
			Expect(res.Content).To(Equal(goodText))
		})
	})

	When("both backends panic", func() {
		BeforeEach(func() {
			primary.results = []fakeResult{{crash: "primary crashed"}}
			fallback.results = []fakeResult{{crash: "fallback crashed"}}
		})

		It("reports the engine as unavailable with both panics", func() {
			Expect(common.IsCode(err, common.CodeEngineUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("primary crashed"))
			Expect(err.Error()).To(ContainSubstring("fallback crashed"))
		})
	})
})

var _ = Describe("FallbackEngine without a fallback", func() {
	fastPolicy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}

	It("fails with EngineUnavailable", func() {
		p := &fakeBackend{name: "p", results: []fakeResult{{err: errors.New("nope")}}}
		e := NewFallbackEngine(p, nil, WithRetryPolicy(fastPolicy))
		_, err := e.Extract(context.Background(), receipt.Image{}, Hints{})
		Expect(errors.Is(err, common.ErrEngineUnavailable)).To(BeTrue())
	})

	It("passes hints through to the backend", func() {
		p := &fakeBackend{name: "p", results: []fakeResult{{text: goodText}}}
		e := NewFallbackEngine(p, nil)
		_, err := e.Extract(context.Background(), receipt.Image{}, Hints{Aggressive: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.hints).To(ConsistOf(Hints{Aggressive: true}))
	})

	It("fails instead of crashing when the backend panics", func() {
		p := &fakeBackend{name: "p", results: []fakeResult{{crash: "boom"}}}
		e := NewFallbackEngine(p, nil, WithRetryPolicy(fastPolicy))
		var err error
		Expect(func() {
			_, err = e.Extract(context.Background(), receipt.Image{}, Hints{})
		}).NotTo(Panic())
		Expect(errors.Is(err, common.ErrEngineUnavailable)).To(BeTrue())
		Expect(p.Calls()).To(Equal(1))
	})
})

var _ = Describe("IsTransient", func() {
	It("recognizes deadlines and marked errors", func() {
		Expect(IsTransient(context.DeadlineExceeded)).To(BeTrue())
		Expect(IsTransient(Transient(errors.New("x")))).To(BeTrue())
		Expect(IsTransient(errors.New("x"))).To(BeFalse())
		Expect(IsTransient(nil)).To(BeFalse())
	})
})

var _ = Describe("CachingEngine", func() {
	It("serves repeated images from cache", func() {
		inner := &countingEngine{text: goodText}
		e := NewCachingEngine(inner, time.Minute, nil)
		img := receipt.Image{Data: []byte("png-bytes")}

		for range 3 {
			res, err := e.Extract(context.Background(), img, Hints{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Content).To(Equal(goodText))
		}
		Expect(inner.calls).To(Equal(1))

		_, _ = e.Extract(context.Background(), img, Hints{Aggressive: true})
		Expect(inner.calls).To(Equal(2))
	})

	It("is a no-op without a ttl", func() {
		inner := &countingEngine{text: goodText}
		Expect(NewCachingEngine(inner, 0, nil)).To(BeIdenticalTo(inner))
	})
})
