package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// DefaultLoadTimeout bounds the top-level code of a relation body each time
// it runs, at compile and at link.
const DefaultLoadTimeout = time.Second

// GojaEngine runs relation bodies written as JavaScript function
// declarations, e.g. "function half(x) { return x / 2 }".
type GojaEngine struct {
	callTimeout time.Duration
	loadTimeout time.Duration
}

// GojaOption configures a GojaEngine.
type GojaOption func(*GojaEngine)

// WithCallTimeout bounds every function invocation. Zero means no bound
// beyond the caller's context.
func WithCallTimeout(d time.Duration) GojaOption {
	return func(e *GojaEngine) {
		e.callTimeout = d
	}
}

// WithLoadTimeout bounds the top-level code of a body. Values below 1 keep
// DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) GojaOption {
	return func(e *GojaEngine) {
		if d > 0 {
			e.loadTimeout = d
		}
	}
}

// NewGojaEngine creates a JavaScript engine.
func NewGojaEngine(opts ...GojaOption) *GojaEngine {
	e := &GojaEngine{loadTimeout: DefaultLoadTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type gojaUnit struct {
	name    string
	source  string
	program *goja.Program
}

func (u *gojaUnit) Name() string   { return u.name }
func (u *gojaUnit) Source() string { return u.source }

// Compile parses source and runs it in a scratch runtime. The compiled
// program is immutable and shared by every runtime it is linked into.
func (e *GojaEngine) Compile(name, source string) (Unit, error) {
	prog, err := goja.Compile("relation.js", source, true)
	if err != nil {
		return nil, err
	}
	u := &gojaUnit{name: name, source: source, program: prog}
	if _, err := e.load(context.Background(), u); err != nil {
		return nil, err
	}
	return u, nil
}

// Link gives every unit a runtime of its own and captures the function it
// declares, so one body cannot redefine another.
func (e *GojaEngine) Link(ctx context.Context, units []Unit) (Program, error) {
	p := &gojaProgram{
		funcs:   make(map[string]gojaFunc, len(units)),
		timeout: e.callTimeout,
	}
	for _, u := range units {
		if _, exists := p.funcs[u.Name()]; exists {
			return nil, fmt.Errorf("link: %s: declared twice", u.Name())
		}
		gu, ok := u.(*gojaUnit)
		if !ok {
			compiled, err := e.Compile(u.Name(), u.Source())
			if err != nil {
				return nil, fmt.Errorf("link: %s: %w", u.Name(), err)
			}
			gu = compiled.(*gojaUnit)
		}
		f, err := e.load(ctx, gu)
		if err != nil {
			return nil, fmt.Errorf("link: %s: %w", u.Name(), err)
		}
		p.funcs[u.Name()] = f
	}
	return p, nil
}

// load runs u's top-level code in a fresh runtime and returns the function
// bound to u's name.
func (e *GojaEngine) load(ctx context.Context, u *gojaUnit) (gojaFunc, error) {
	vm := goja.New()
	err := guard(ctx, vm, e.loadTimeout, func() error {
		_, err := vm.RunProgram(u.program)
		return err
	})
	if err != nil {
		return gojaFunc{}, err
	}
	fn, ok := goja.AssertFunction(vm.Get(u.name))
	if !ok {
		return gojaFunc{}, fmt.Errorf("%s: %w", u.name, ErrNotDeclared)
	}
	return gojaFunc{vm: vm, fn: fn}, nil
}

// guard runs fn and interrupts vm when ctx ends or timeout elapses.
func guard(ctx context.Context, vm *goja.Runtime, timeout time.Duration, fn func() error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	err := fn()

	close(done)
	wg.Wait()
	vm.ClearInterrupt()
	return err
}

type gojaFunc struct {
	vm *goja.Runtime
	fn goja.Callable
}

type gojaProgram struct {
	mu      sync.Mutex
	funcs   map[string]gojaFunc
	timeout time.Duration
}

// Call invokes the named function. Arguments are copied into the runtime,
// so the function cannot modify the caller's values. Cancelling ctx
// interrupts the runtime.
func (p *gojaProgram) Call(ctx context.Context, name string, args []any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.funcs[name]
	if !ok {
		return nil, &EvalError{Function: name, Err: ErrUnknownFunction}
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		v, err := Normalize(a)
		if err != nil {
			return nil, &EvalError{Function: name, Err: fmt.Errorf("argument %d: %w", i, err)}
		}
		jsArgs[i] = f.vm.ToValue(v)
	}

	var res goja.Value
	err := guard(ctx, f.vm, p.timeout, func() error {
		var err error
		res, err = f.fn(goja.Undefined(), jsArgs...)
		return err
	})
	if err != nil {
		return nil, &EvalError{Function: name, Err: err}
	}
	if res == nil || goja.IsUndefined(res) {
		return nil, &EvalError{Function: name, Err: ErrUndefined}
	}

	exported := res.Export()
	if _, isPromise := exported.(*goja.Promise); isPromise {
		return nil, &EvalError{Function: name, Err: fmt.Errorf("%w: promise", ErrNotJSON)}
	}
	out, err := Normalize(exported)
	if err != nil {
		return nil, &EvalError{Function: name, Err: fmt.Errorf("%w: %v", ErrNotJSON, err)}
	}
	return out, nil
}
