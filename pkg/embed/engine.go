package hostinterop

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/bridge"
	"github.com/funvibe/hostinterop/internal/config"
	"github.com/funvibe/hostinterop/internal/dispatch"
	"github.com/funvibe/hostinterop/internal/member"
	"github.com/funvibe/hostinterop/internal/profile"
)

// Engine is the embedding entry point: it owns the member cache, the bridge
// answering guest messages and the globals a guest runtime sees.
type Engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	bridge     *bridge.Bridge
	marshaller *Marshaller
	store      *profile.Store

	mu      sync.RWMutex
	globals map[string]any
	sites   map[string]*bridge.InvokeSite
}

type settings struct {
	cfg         *config.Config
	logger      *zap.Logger
	profilePath string
	reporter    dispatch.Reporter
	wrap        ExceptionWrapper
}

type Option func(*settings)

// WithConfig uses cfg instead of the defaults.
func WithConfig(cfg *Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogger overrides the logger built from the config.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithProfile records call-site transitions in a SQLite database at path.
func WithProfile(path string) Option {
	return func(s *settings) { s.profilePath = path }
}

// WithReporter receives call-site transitions. It is ignored when WithProfile
// is also given.
func WithReporter(r dispatch.Reporter) Option {
	return func(s *settings) { s.reporter = r }
}

// WithExceptionWrapper maps native failures to guest errors.
func WithExceptionWrapper(fn ExceptionWrapper) Option {
	return func(s *settings) { s.wrap = fn }
}

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.logger == nil {
		l, err := config.NewLogger(s.cfg.Log)
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	e := &Engine{
		cfg:     s.cfg,
		logger:  s.logger,
		globals: make(map[string]any),
		sites:   make(map[string]*bridge.InvokeSite),
	}
	reporter := s.reporter
	if s.profilePath != "" {
		store, err := profile.Open(s.profilePath, profile.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		e.store = store
		reporter = store
	}

	bopts := []bridge.Option{
		bridge.WithLogger(s.logger),
		bridge.WithCache(member.NewCache(member.WithLogger(s.logger))),
		bridge.WithCacheLimit(s.cfg.CacheLimit()),
		bridge.WithLosslessNarrowing(s.cfg.LosslessNarrowing()),
		bridge.WithReporter(reporter),
	}
	if s.wrap != nil {
		bopts = append(bopts, bridge.WithExceptionWrapper(s.wrap))
	}
	e.bridge = bridge.New(bopts...)
	e.marshaller = NewMarshaller(e.bridge)
	return e, nil
}

// NewFromFile creates an engine configured by the hostinterop.yaml found in
// dir or its parents. Without a file the defaults apply.
func NewFromFile(dir string, opts ...Option) (*Engine, error) {
	path, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return New(opts...)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

func (e *Engine) Bridge() *bridge.Bridge { return e.bridge }

func (e *Engine) Marshaller() *Marshaller { return e.marshaller }

func (e *Engine) Logger() *zap.Logger { return e.logger }

// Profile returns the transition store, or nil when profiling is off.
func (e *Engine) Profile() *profile.Store { return e.store }

// Register attaches static members to t. Overload groups and hidden members
// configured for t are merged in.
func (e *Engine) Register(t reflect.Type, spec StaticSpec) error {
	if cls, ok := e.cfg.Class(t.String()); ok {
		spec.Overloads = mergeOverloads(spec.Overloads, cls.Overloads)
		spec.Hidden = append(spec.Hidden, cls.Hidden...)
	}
	if err := e.bridge.Cache().Register(t, spec); err != nil {
		return err
	}
	e.logger.Debug("registered host class", zap.String("type", t.String()))
	return nil
}

func mergeOverloads(dst, src map[string][]string) map[string][]string {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string][]string, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ensureClass registers types named in the config the first time a value of
// that type is bound.
func (e *Engine) ensureClass(t reflect.Type) {
	if t == nil {
		return
	}
	if _, ok := e.bridge.Cache().TypeByName(t.String()); ok {
		return
	}
	if _, ok := e.cfg.Class(t.String()); !ok {
		return
	}
	if err := e.Register(t, StaticSpec{}); err != nil {
		e.logger.Warn("config class not applied", zap.String("type", t.String()), zap.Error(err))
	}
}

// BindClass exposes the static handle of t as a global.
func (e *Engine) BindClass(name string, t reflect.Type, spec StaticSpec) error {
	if err := e.Register(t, spec); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = bridge.StaticClass(t)
	return nil
}

// Bind makes a Go value or func available to guests under name. Values keep
// their host identity; use Set to copy plain data instead.
func (e *Engine) Bind(name string, val any) {
	e.ensureClass(reflect.TypeOf(val))
	g := e.bridge.ToGuest(reflect.ValueOf(val))
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = g
}

// Set stores a global converted by the marshaller.
func (e *Engine) Set(name string, val any) error {
	g, err := e.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = g
	return nil
}

// Global returns the guest value bound to name.
func (e *Engine) Global(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// Get returns a global converted back to a Go value.
func (e *Engine) Get(name string) (any, error) {
	v, ok := e.Global(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return e.marshaller.FromValue(v, nil)
}

// Call calls a bound function with Go arguments and returns a Go result.
func (e *Engine) Call(name string, args ...any) (any, error) {
	fn, ok := e.Global(name)
	if !ok {
		return nil, fmt.Errorf("function '%s' not found", name)
	}
	guestArgs, err := e.marshaller.ToValues(args)
	if err != nil {
		return nil, err
	}
	res, err := e.bridge.Execute(fn, guestArgs...)
	if err != nil {
		return nil, err
	}
	return e.marshaller.FromValue(res, nil)
}

// Invoke calls method on the global named recv. Calls through the engine share
// one call site per method name.
func (e *Engine) Invoke(recv, method string, args ...any) (any, error) {
	obj, ok := e.Global(recv)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", recv)
	}
	guestArgs, err := e.marshaller.ToValues(args)
	if err != nil {
		return nil, err
	}
	res, err := e.site(method).Invoke(obj, guestArgs...)
	if err != nil {
		return nil, err
	}
	return e.marshaller.FromValue(res, nil)
}

func (e *Engine) site(method string) *bridge.InvokeSite {
	e.mu.RLock()
	s, ok := e.sites[method]
	e.mu.RUnlock()
	if ok {
		return s
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sites[method]; ok {
		return s
	}
	s = e.bridge.NewInvokeSite(method)
	e.sites[method] = s
	return s
}

// Close flushes the logger and closes the profile store.
func (e *Engine) Close() error {
	_ = e.logger.Sync()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
