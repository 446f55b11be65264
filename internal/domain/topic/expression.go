package topic

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// expression is a compiled JavaScript expression over the variable x.
// One goja runtime is owned per expression and guarded by mu because a
// goja.Runtime is not safe for concurrent use.
type expression struct {
	source  string
	program *goja.Program
	timeout time.Duration

	mu sync.Mutex
	vm *goja.Runtime // Protected by mu
}

func compileExpression(source string, timeout time.Duration) (*expression, error) {
	program, err := goja.Compile("derive", source, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(256)
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, err
		}
	}

	return &expression{
		source:  source,
		program: program,
		timeout: timeout,
		vm:      vm,
	}, nil
}

// eval runs the expression with x bound to value. The second result is
// false when the expression evaluates to undefined, which filters the value.
func (e *expression) eval(value any) (any, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vm.Set("x", value); err != nil {
		return nil, false, err
	}

	fired := make(chan struct{})
	timer := time.AfterFunc(e.timeout, func() {
		defer close(fired)
		e.vm.Interrupt("evaluation timeout exceeded")
	})

	result, err := e.vm.RunProgram(e.program)

	if !timer.Stop() {
		<-fired
	}
	e.vm.ClearInterrupt()

	if err != nil {
		return nil, false, err
	}
	if result == nil || goja.IsUndefined(result) {
		return nil, false, nil
	}
	if goja.IsNull(result) {
		return nil, true, nil
	}
	return result.Export(), true, nil
}
