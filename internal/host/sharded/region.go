package sharded

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"worldsched/internal/host/mainloop"
	logx "worldsched/pkg/logx"
	"worldsched/pkg/sched"
)

// ErrBadHandle means an affinity submission carried a handle this world does
// not recognize. The dispatch layer degrades such submissions to the
// coordinating thread.
var ErrBadHandle = errors.New("unknown affinity handle")

// regionSpan is the side length, in world units, of the square area one
// region loop owns.
const regionSpan = 32

// Entity is this host's entity handle. The dispatch layer carries it opaquely.
type Entity struct {
	ID     uuid.UUID
	Region string
}

func NewEntity(region string) Entity {
	return Entity{ID: uuid.New(), Region: region}
}

// Location is this host's positional handle.
type Location struct {
	X, Z int
}

func (l Location) regionKey() string {
	return fmt.Sprintf("r.%d.%d", floorDiv(l.X, regionSpan), floorDiv(l.Z, regionSpan))
}

func floorDiv(a, span int) int {
	q := a / span
	if a%span != 0 && (a < 0) != (span < 0) {
		q--
	}
	return q
}

// Regions routes tasks to per-region loops, creating each region's loop the
// first time something is submitted to it. Implements sched.RegionScheduler.
type Regions struct {
	cfg mainloop.Config
	log logx.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
	loops   map[string]*mainloop.Loop
}

func newRegions(cfg mainloop.Config, log logx.Logger) *Regions {
	return &Regions{
		cfg:   cfg,
		log:   log.With(logx.String("component", "regions")),
		loops: map[string]*mainloop.Loop{},
	}
}

func (r *Regions) start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.running = true
	r.mu.Unlock()
}

func (r *Regions) stop(ctx context.Context) {
	r.mu.Lock()
	r.running = false
	loops := make([]*mainloop.Loop, 0, len(r.loops))
	for _, l := range r.loops {
		loops = append(loops, l)
	}
	r.loops = map[string]*mainloop.Loop{}
	r.mu.Unlock()

	for _, l := range loops {
		l.Stop(ctx)
	}
}

func (r *Regions) loopFor(key string) (*mainloop.Loop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, mainloop.ErrStopped
	}
	if l, ok := r.loops[key]; ok {
		return l, nil
	}
	l := mainloop.New(r.cfg, r.log.With(logx.String("region", key)))
	l.Start(r.ctx)
	r.loops[key] = l
	r.log.Debug("region loop created", logx.String("region", key))
	return l, nil
}

func (r *Regions) RunForEntity(owner string, entity sched.Entity, task sched.Task) error {
	e, ok := entity.(Entity)
	if !ok {
		return fmt.Errorf("%w: entity is %T", ErrBadHandle, entity)
	}
	if e.Region == "" {
		return fmt.Errorf("%w: entity %s has no region", ErrBadHandle, e.ID)
	}
	l, err := r.loopFor(e.Region)
	if err != nil {
		return err
	}
	return l.Submit(owner, task)
}

func (r *Regions) RunForLocation(owner string, location sched.Location, task sched.Task) error {
	loc, ok := location.(Location)
	if !ok {
		return fmt.Errorf("%w: location is %T", ErrBadHandle, location)
	}
	l, err := r.loopFor(loc.regionKey())
	if err != nil {
		return err
	}
	return l.Submit(owner, task)
}
