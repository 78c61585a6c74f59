package capabilities

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/providers/marketdata"
)

// Handler executes one capability against host-side data.
type Handler func(ctx context.Context, args []interface{}) (interface{}, error)

// Capability describes one entry of the closed surface.
type Capability struct {
	Name    string
	Params  []string
	Returns string
	// Fallback is the documented null/empty contract value substituted when
	// the implementation fails. nil renders as JS null.
	Fallback interface{}
	Handler  Handler
}

// Recorder receives capability invocation outcomes for metrics.
type Recorder interface {
	RecordCapabilityCall(capability string, duration time.Duration, failed bool)
}

// Surface is the fixed registry of functions reachable from sandboxed code.
// It is populated once at construction and never mutated afterward.
type Surface struct {
	caps     map[string]Capability
	names    []string
	recorder Recorder
	log      *logging.Logger
}

// Option configures a Surface.
type Option func(*surfaceOptions)

type surfaceOptions struct {
	clock    func() time.Time
	recorder Recorder
	log      *logging.Logger
}

// WithClock overrides the clock used to resolve "today". For tests.
func WithClock(clock func() time.Time) Option {
	return func(o *surfaceOptions) { o.clock = clock }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *surfaceOptions) { o.recorder = r }
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *surfaceOptions) { o.log = log }
}

// NewSurface builds the closed capability registry over the given provider.
func NewSurface(provider marketdata.Provider, opts ...Option) *Surface {
	o := surfaceOptions{
		clock: time.Now,
		log:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Surface{
		caps:     make(map[string]Capability),
		recorder: o.recorder,
		log:      o.log.Named("capabilities"),
	}

	m := &market{provider: provider, clock: o.clock}
	for _, c := range m.capabilities() {
		s.caps[c.Name] = c
		s.names = append(s.names, c.Name)
	}
	return s
}

// Names returns the capability names in registration order.
func (s *Surface) Names() []string {
	return append([]string{}, s.names...)
}

// Lookup returns the capability descriptor for name.
func (s *Surface) Lookup(name string) (Capability, bool) {
	c, ok := s.caps[name]
	return c, ok
}

// Invoke runs the named capability. Implementation errors and panics are
// returned as errors; callers substitute the capability's Fallback so a
// failure never reaches the snippet as an exception.
func (s *Surface) Invoke(ctx context.Context, name string, args []interface{}) (result interface{}, err error) {
	c, ok := s.caps[name]
	if !ok {
		return nil, fmt.Errorf("unknown capability %q", name)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %s panicked: %v", name, r)
		}
		if s.recorder != nil {
			s.recorder.RecordCapabilityCall(name, time.Since(start), err != nil)
		}
		if err != nil {
			s.log.Warn("capability failed, substituting contract value",
				zap.String("capability", name),
				zap.Error(err),
			)
		}
	}()

	return c.Handler(ctx, args)
}

// Fallback returns the null/empty contract value for name.
func (s *Surface) Fallback(name string) interface{} {
	if c, ok := s.caps[name]; ok {
		return c.Fallback
	}
	return nil
}
