package systems

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/san-kum/wamctl/internal/metrics"
	"github.com/san-kum/wamctl/internal/robot"
)

// ExecutionManager runs the graph once per period. Each cycle pulls every
// always-updated system; anything they depend on is updated on the way.
type ExecutionManager struct {
	mu      sync.Mutex
	period  time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	stats   *metrics.LoopStats
	managed []System
	always  map[System]bool
	token   uint64
	cycles  uint64
}

type ManagerOption func(*ExecutionManager)

func WithClock(c clock.Clock) ManagerOption {
	return func(em *ExecutionManager) { em.clock = c }
}

func WithLogger(l *zap.Logger) ManagerOption {
	return func(em *ExecutionManager) { em.logger = l }
}

func NewExecutionManager(period time.Duration, opts ...ManagerOption) (*ExecutionManager, error) {
	if period <= 0 {
		return nil, errors.Wrapf(robot.ErrConfig, "systems: period %v must be positive", period)
	}
	em := &ExecutionManager{
		period: period,
		clock:  clock.New(),
		logger: zap.NewNop(),
		always: make(map[System]bool),
	}
	for _, opt := range opts {
		opt(em)
	}
	em.stats = metrics.NewLoopStats(1000, period)
	return em, nil
}

func (em *ExecutionManager) Period() time.Duration { return em.period }

// StartManaging adds sys to the graph. Systems with always set are
// updated every cycle whether or not anything reads them.
func (em *ExecutionManager) StartManaging(sys System, always bool) error {
	em.mu.Lock()
	defer em.mu.Unlock()
	b := sys.base()
	if b.em != nil && b.em != em {
		return errors.Wrapf(robot.ErrSequence, "systems: %s is managed elsewhere", b.name)
	}
	if b.em == nil {
		b.em = em
		em.managed = append(em.managed, sys)
	}
	if always {
		em.always[sys] = true
	}
	return nil
}

func (em *ExecutionManager) StopManaging(sys System) {
	em.mu.Lock()
	defer em.mu.Unlock()
	b := sys.base()
	if b.em != em {
		return
	}
	b.em = nil
	em.managed = removeItem(em.managed, sys)
	delete(em.always, sys)
}

func (em *ExecutionManager) Managed() []System {
	em.mu.Lock()
	defer em.mu.Unlock()
	return append([]System(nil), em.managed...)
}

// RunExecutionCycle updates the graph once. It returns the first failure
// recorded by a managed system.
func (em *ExecutionManager) RunExecutionCycle() error {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.token++
	em.cycles++
	for _, sys := range em.managed {
		if em.always[sys] {
			sys.base().update(em.token)
		}
	}
	for _, sys := range em.managed {
		if err := sys.base().Err(); err != nil {
			return err
		}
	}
	return nil
}

func (em *ExecutionManager) Cycles() uint64 {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.cycles
}

// Validate orders the managed systems so that every system follows the
// systems it reads from, and fails with ErrCycle on a feedback loop. A
// loop is legal only when broken by a system outside the manager.
func (em *ExecutionManager) Validate() ([]System, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	index := make(map[*Base]int, len(em.managed))
	for i, sys := range em.managed {
		index[sys.base()] = i
	}
	indegree := make([]int, len(em.managed))
	edges := make([][]int, len(em.managed))
	for i, sys := range em.managed {
		deps := lo.Uniq(lo.FlatMap(sys.base().inputs, func(in inputPort, _ int) []*Base {
			return in.sources()
		}))
		for _, d := range deps {
			j, ok := index[d]
			if !ok {
				continue
			}
			edges[j] = append(edges[j], i)
			indegree[i]++
		}
	}

	var queue, order []int
	for i, n := range indegree {
		if n == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range edges[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if len(order) < len(em.managed) {
		stuck := lo.FilterMap(em.managed, func(sys System, i int) (string, bool) {
			return sys.base().name, indegree[i] > 0
		})
		return nil, errors.Wrapf(ErrCycle, "through %v", stuck)
	}
	return lo.Map(order, func(i int, _ int) System { return em.managed[i] }), nil
}

// Run validates the graph and then runs one cycle per period until ctx
// is done or a system fails.
func (em *ExecutionManager) Run(ctx context.Context) error {
	if _, err := em.Validate(); err != nil {
		return err
	}
	ticker := em.clock.Ticker(em.period)
	defer ticker.Stop()
	em.logger.Info("execution manager started",
		zap.Duration("period", em.period), zap.Int("systems", len(em.Managed())))
	for {
		select {
		case <-ctx.Done():
			sum := em.stats.Summary()
			em.logger.Info("execution manager stopped",
				zap.Uint64("cycles", sum.Count), zap.Uint64("overruns", sum.Overruns))
			return nil
		case <-ticker.C:
			begin := em.clock.Now()
			if err := em.RunExecutionCycle(); err != nil {
				em.logger.Error("execution cycle failed", zap.Error(err))
				return err
			}
			em.stats.Add(em.clock.Since(begin))
		}
	}
}

func (em *ExecutionManager) Stats() metrics.Summary { return em.stats.Summary() }
