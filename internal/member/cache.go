package member

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StaticSpec registers what Go cannot express on a type itself: static
// members, constructors, nested classes and overload groups.
type StaticSpec struct {
	// Constructors are funcs returning the class type.
	Constructors []any
	// Funcs maps a static member name to its overloads, in order.
	Funcs map[string][]any
	// Vars maps a static field name to a pointer to a package-level var.
	Vars map[string]any
	// Consts maps a static field name to a read-only value.
	Consts map[string]any
	// Nested maps a name to a nested class readable from the static handle.
	Nested map[string]reflect.Type
	// Overloads maps a guest name to the Go method names grouped under it.
	Overloads map[string][]string
	// Hidden lists member names that are not exposed.
	Hidden []string
	// Generic maps a Go method name to generic parameter hints.
	Generic map[string][]reflect.Type
}

func (s *StaticSpec) merge(o StaticSpec) {
	s.Constructors = append(s.Constructors, o.Constructors...)
	s.Hidden = append(s.Hidden, o.Hidden...)
	if len(o.Funcs) > 0 && s.Funcs == nil {
		s.Funcs = make(map[string][]any)
	}
	for k, v := range o.Funcs {
		s.Funcs[k] = append(s.Funcs[k], v...)
	}
	if len(o.Overloads) > 0 && s.Overloads == nil {
		s.Overloads = make(map[string][]string)
	}
	for k, v := range o.Overloads {
		s.Overloads[k] = v
	}
	s.Vars = mergeMap(s.Vars, o.Vars)
	s.Consts = mergeMap(s.Consts, o.Consts)
	s.Nested = mergeMap(s.Nested, o.Nested)
	s.Generic = mergeMap(s.Generic, o.Generic)
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ClassDesc holds the reflected members of one host type.
type ClassDesc struct {
	Type          reflect.Type
	methods       map[string]Member
	staticMethods map[string]Member
	fields        map[string]*Field
	staticFields  map[string]*Field
	constructor   Member
	nested        map[string]reflect.Type
}

// Cache reflects host types on first use and keeps the descriptors for its
// lifetime. It is safe for concurrent use.
type Cache struct {
	introspector Introspector
	logger       *zap.Logger

	mu      sync.RWMutex
	specs   map[reflect.Type]*StaticSpec
	byName  map[string]reflect.Type
	classes sync.Map // reflect.Type -> *ClassDesc
	group   singleflight.Group
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithIntrospector(in Introspector) Option {
	return func(c *Cache) { c.introspector = in }
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{
		introspector: ProtoIntrospector{},
		logger:       zap.NewNop(),
		specs:        make(map[reflect.Type]*StaticSpec),
		byName:       make(map[string]reflect.Type),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register attaches static members to t and makes it resolvable by name.
// Registering a type that was already reflected is an error.
func (c *Cache) Register(t reflect.Type, spec StaticSpec) error {
	if _, built := c.classes.Load(t); built {
		return fmt.Errorf("register %s: class already reflected", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.specs[t]
	if !ok {
		s = &StaticSpec{}
		c.specs[t] = s
	}
	s.merge(spec)
	c.byName[t.String()] = t
	return nil
}

// TypeByName returns a registered type by its Go name (e.g. "*bytes.Buffer").
func (c *Cache) TypeByName(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[name]
	return t, ok
}

// RegisteredTypes returns every registered type name, sorted.
func (c *Cache) RegisteredTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Class returns the descriptor of t, reflecting it on first use.
func (c *Cache) Class(t reflect.Type) *ClassDesc {
	if cd, ok := c.classes.Load(t); ok {
		return cd.(*ClassDesc)
	}
	key := fmt.Sprintf("%p", t)
	v, _, _ := c.group.Do(key, func() (any, error) {
		if cd, ok := c.classes.Load(t); ok {
			return cd, nil
		}
		cd := c.build(t)
		actual, _ := c.classes.LoadOrStore(t, cd)
		return actual, nil
	})
	return v.(*ClassDesc)
}

// LookupMethod returns a *Method or *Overloaded, or nil.
func (c *Cache) LookupMethod(t reflect.Type, name string, static bool) Member {
	cd := c.Class(t)
	if static {
		return cd.staticMethods[name]
	}
	return cd.methods[name]
}

// LookupField returns the named field, or nil.
func (c *Cache) LookupField(t reflect.Type, name string, static bool) *Field {
	cd := c.Class(t)
	if static {
		return cd.staticFields[name]
	}
	return cd.fields[name]
}

// LookupConstructor returns the constructor member of t, or nil.
func (c *Cache) LookupConstructor(t reflect.Type) Member {
	return c.Class(t).constructor
}

// LookupNested returns a nested class registered on t.
func (c *Cache) LookupNested(t reflect.Type, name string) (reflect.Type, bool) {
	nt, ok := c.Class(t).nested[name]
	return nt, ok
}

// MemberNames lists method, field and nested class names, sorted.
func (c *Cache) MemberNames(t reflect.Type, static bool) []string {
	cd := c.Class(t)
	seen := make(map[string]bool)
	add := func(n string) { seen[n] = true }
	if static {
		for n := range cd.staticMethods {
			add(n)
		}
		for n := range cd.staticFields {
			add(n)
		}
		for n := range cd.nested {
			add(n)
		}
	} else {
		for n := range cd.methods {
			add(n)
		}
		for n := range cd.fields {
			add(n)
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Cache) spec(t reflect.Type) StaticSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.specs[t]; ok {
		return *s
	}
	return StaticSpec{}
}

func (c *Cache) build(t reflect.Type) *ClassDesc {
	spec := c.spec(t)
	cd := &ClassDesc{
		Type:          t,
		methods:       make(map[string]Member),
		staticMethods: make(map[string]Member),
		fields:        make(map[string]*Field),
		staticFields:  make(map[string]*Field),
		nested:        spec.Nested,
	}

	byGoName := make(map[string]*Method)
	for _, m := range c.introspector.Methods(t) {
		if hints, ok := spec.Generic[m.Name]; ok {
			m = m.withGeneric(hints)
		}
		byGoName[m.Name] = m
		cd.methods[m.Name] = m
	}
	for guest, goNames := range spec.Overloads {
		var group []*Method
		for _, gn := range goNames {
			m, ok := byGoName[gn]
			if !ok {
				c.logger.Warn("overload alias refers to unknown method",
					zap.String("type", t.String()), zap.String("name", guest), zap.String("method", gn))
				continue
			}
			group = append(group, m.withName(guest))
		}
		if len(group) > 0 {
			cd.methods[guest] = toMember(guest, group)
		}
	}

	for _, f := range c.introspector.Fields(t) {
		cd.fields[f.Name] = f
	}

	for name, fns := range spec.Funcs {
		var group []*Method
		for _, fn := range fns {
			m, err := NewFunc(name, t, fn)
			if err != nil {
				c.logger.Warn("skipping static func", zap.String("type", t.String()), zap.Error(err))
				continue
			}
			if hints, ok := spec.Generic[name]; ok {
				m = m.withGeneric(hints)
			}
			group = append(group, m)
		}
		if len(group) > 0 {
			cd.staticMethods[name] = toMember(name, group)
		}
	}
	for name, ptr := range spec.Vars {
		if f, err := varField(name, t, ptr); err == nil {
			cd.staticFields[name] = f
		} else {
			c.logger.Warn("skipping static var", zap.String("type", t.String()), zap.Error(err))
		}
	}
	for name, val := range spec.Consts {
		cd.staticFields[name] = constField(name, t, val)
	}

	var ctors []*Method
	for _, fn := range spec.Constructors {
		m, err := NewFunc("new", t, fn)
		if err != nil {
			c.logger.Warn("skipping constructor", zap.String("type", t.String()), zap.Error(err))
			continue
		}
		ctors = append(ctors, m)
	}
	if len(ctors) == 0 {
		ctors = c.introspector.Constructors(t)
	}
	if len(ctors) > 0 {
		cd.constructor = toMember("new", ctors)
	}

	for _, h := range spec.Hidden {
		delete(cd.methods, h)
		delete(cd.staticMethods, h)
		delete(cd.fields, h)
		delete(cd.staticFields, h)
	}

	c.logger.Debug("reflected host class",
		zap.String("type", t.String()),
		zap.Int("methods", len(cd.methods)),
		zap.Int("fields", len(cd.fields)),
		zap.Int("static", len(cd.staticMethods)+len(cd.staticFields)))
	return cd
}

func toMember(name string, group []*Method) Member {
	if len(group) == 1 {
		return group[0]
	}
	return &Overloaded{Name: name, Overloads: group}
}

func varField(name string, declaring reflect.Type, ptr any) (*Field, error) {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return nil, fmt.Errorf("static var %s: expected non-nil pointer, got %T", name, ptr)
	}
	elem := pv.Elem()
	return &Field{
		Name:      name,
		Declaring: declaring,
		Type:      elem.Type(),
		Static:    true,
		Writable:  true,
		get:       func(reflect.Value) (reflect.Value, error) { return elem, nil },
		set: func(_, v reflect.Value) error {
			elem.Set(v)
			return nil
		},
	}, nil
}

func constField(name string, declaring reflect.Type, val any) *Field {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		v = reflect.Zero(reflect.TypeOf((*any)(nil)).Elem())
	}
	return &Field{
		Name:      name,
		Declaring: declaring,
		Type:      v.Type(),
		Static:    true,
		get:       func(reflect.Value) (reflect.Value, error) { return v, nil },
	}
}
