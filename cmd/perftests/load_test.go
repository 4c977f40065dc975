package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/clock"
	"auction-engine/internal/fanout"
	"auction-engine/internal/notify"
	repository "auction-engine/internal/repository"
	"auction-engine/utils"
)

// LoadScenario defines configurable benchmark parameters
type LoadScenario struct {
	Name            string
	NumAuctions     int
	ReadRatio       int
	MaxBidIncrement int
	Burst           bool // if true, no delay between ops
}

// OperationMetrics collects latencies safely
type OperationMetrics struct {
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(d time.Duration) {
	om.mu.Lock()
	om.latencies = append(om.latencies, d)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (min, max, avg, p95, p99 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return
	}
	latencies := om.latencies
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	min = latencies[0]
	max = latencies[len(latencies)-1]

	var total time.Duration
	for _, d := range latencies {
		total += d
	}
	avg = total / time.Duration(len(latencies))
	p95 = latencies[int(0.95*float64(len(latencies)-1))]
	p99 = latencies[int(0.99*float64(len(latencies)-1))]
	return
}

// setupStack creates the bidding service with a live notification pipeline
// and numAuctions seeded auctions
func setupStack(b *testing.B, numAuctions int) *bidding.BiddingService {
	repo := repository.NewMemoryRepo(utils.GenerateID)
	dispatcher := fanout.NewDispatcher(notify.NewSink(notify.NewHub(16), repo, utils.GenerateID), 1024)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()
	b.Cleanup(func() {
		cancel()
		<-done
	})

	svc := bidding.NewBiddingService(repo, repo, dispatcher, clock.NewFixed(benchNow))
	for i := 0; i < numAuctions; i++ {
		seedAuction(b, repo, fmt.Sprintf("auction_%d", i), 100)
	}
	return svc
}

// Benchmark_Load_BiddingSystem runs multiple scenarios
func Benchmark_Load_BiddingSystem(b *testing.B) {
	scenarios := []LoadScenario{
		{Name: "Low-Contention-WriteHeavy", NumAuctions: 200, ReadRatio: 0, MaxBidIncrement: 50},
		{Name: "High-Contention-WriteHeavy", NumAuctions: 10, ReadRatio: 0, MaxBidIncrement: 20},
		{Name: "Mixed-Workload", NumAuctions: 50, ReadRatio: 7, MaxBidIncrement: 30},
		{Name: "ReadHeavy", NumAuctions: 50, ReadRatio: 9, MaxBidIncrement: 20},
		{Name: "Edge-Case-SingleAuction", NumAuctions: 1, ReadRatio: 5, MaxBidIncrement: 10},
		{Name: "Peak-Burst", NumAuctions: 50, ReadRatio: 0, MaxBidIncrement: 20, Burst: true},
	}

	for _, s := range scenarios {
		b.Run(s.Name, func(b *testing.B) {
			runParallelScenario(b, s)
		})
	}
}

func runParallelScenario(b *testing.B, s LoadScenario) {
	b.ReportAllocs()

	svc := setupStack(b, s.NumAuctions)
	ctx := context.Background()

	var totalOps, acceptedBids, rejectedBids, failedBids, totalReads int64
	auctionAccepted := make([]int64, s.NumAuctions)
	metrics := &OperationMetrics{}

	b.ResetTimer()
	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			auctionIndex := rnd.Intn(s.NumAuctions)
			auctionID := fmt.Sprintf("auction_%d", auctionIndex)

			opStart := time.Now()
			if rnd.Intn(10) < s.ReadRatio {
				if _, err := svc.GetAuction(ctx, auctionID); err != nil {
					b.Logf("ignored read error: %v", err)
				}
				atomic.AddInt64(&totalReads, 1)
			} else {
				current, err := svc.GetAuction(ctx, auctionID)
				if err != nil {
					atomic.AddInt64(&failedBids, 1)
					continue
				}
				bidAmount := current.CurrentBid + float64(1+rnd.Intn(s.MaxBidIncrement))
				userID := fmt.Sprintf("user_%d", rnd.Intn(1000))

				outcome, err := svc.PlaceBid(ctx, auctionID, userID, bidAmount)
				switch {
				case err != nil:
					b.Logf("ignored bid error: %v", err)
					atomic.AddInt64(&failedBids, 1)
				case outcome.Accepted:
					atomic.AddInt64(&acceptedBids, 1)
					atomic.AddInt64(&auctionAccepted[auctionIndex], 1)
				default:
					atomic.AddInt64(&rejectedBids, 1)
				}
			}

			metrics.Record(time.Since(opStart))
			atomic.AddInt64(&totalOps, 1)

			if !s.Burst {
				time.Sleep(time.Millisecond)
			}
		}
	})

	elapsed := time.Since(start)
	throughput := float64(totalOps) / elapsed.Seconds()
	min, max, avg, p95, p99 := metrics.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	b.Logf(
		"Scenario: %s | Auctions: %d | Total Ops: %d | Accepted: %d | Rejected: %d | Failed: %d | Reads: %d | Elapsed: %s | Throughput: %.2f ops/sec | Latency(us) min: %.2f avg: %.2f max: %.2f p95: %.2f p99: %.2f | Memory Alloc: %.2f MB",
		s.Name, s.NumAuctions, totalOps, acceptedBids, rejectedBids, failedBids, totalReads, elapsed,
		throughput,
		float64(min.Microseconds()), float64(avg.Microseconds()), float64(max.Microseconds()),
		float64(p95.Microseconds()), float64(p99.Microseconds()),
		float64(mem.Alloc)/1024/1024,
	)

	for i, v := range auctionAccepted {
		if v > 0 {
			b.Logf("Auction %d accepted bids: %d", i, v)
		}
	}
}
