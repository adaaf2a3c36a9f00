package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/wol-monitor/internal/circuitbreaker"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("CircuitBreaker", func() {
	var (
		cb    *circuitbreaker.CircuitBreaker
		clock *manualClock
	)

	BeforeEach(func() {
		clock = &manualClock{now: time.Unix(1700000000, 0)}
		cb = circuitbreaker.New(3, 30*time.Second, circuitbreaker.WithClock(clock.Now))
	})

	trip := func() {
		cb.RecordFailure()
		cb.RecordFailure()
		cb.RecordFailure()
		Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
	}

	Describe("New", func() {
		It("should start closed", func() {
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Allow()).To(BeTrue())
		})

		It("should clamp the threshold to one", func() {
			single := circuitbreaker.New(0, time.Second)
			single.RecordFailure()
			Expect(single.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Context("when in CLOSED state", func() {
		It("should remain closed after failures below threshold", func() {
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Allow()).To(BeTrue())
		})

		It("should reset the failure count on success", func() {
			cb.RecordFailure()
			cb.RecordFailure()
			cb.RecordSuccess()
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Context("when in OPEN state", func() {
		BeforeEach(trip)

		It("should block calls before the reset timeout", func() {
			clock.Advance(29 * time.Second)
			Expect(cb.Allow()).To(BeFalse())
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should turn half-open after the reset timeout", func() {
			clock.Advance(30 * time.Second)
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Context("when in HALF-OPEN state", func() {
		BeforeEach(func() {
			trip()
			clock.Advance(31 * time.Second)
			Expect(cb.Allow()).To(BeTrue())
		})

		It("should close on success", func() {
			cb.RecordSuccess()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should re-open on a single failure", func() {
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.Allow()).To(BeFalse())
		})
	})

	Describe("OnStateChange", func() {
		It("should report every transition once", func() {
			var transitions []string
			cb = circuitbreaker.New(1, time.Second,
				circuitbreaker.WithClock(clock.Now),
				circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
					transitions = append(transitions, from.String()+"->"+to.String())
				}))

			cb.RecordFailure()
			cb.RecordFailure()
			clock.Advance(time.Second)
			cb.Allow()
			cb.RecordSuccess()

			Expect(transitions).To(Equal([]string{
				"CLOSED->OPEN",
				"OPEN->HALF-OPEN",
				"HALF-OPEN->CLOSED",
			}))
		})
	})

	Describe("String", func() {
		It("should name every state", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF-OPEN"))
			Expect(circuitbreaker.State(9).String()).To(Equal("UNKNOWN"))
		})
	})

	It("should be safe for concurrent use", func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
				cb.Allow()
				_ = cb.State()
			}(i)
		}
		wg.Wait()
	})
})
