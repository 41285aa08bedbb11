package scripting

import (
	"context"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm  *goja.Runtime
	ctx context.Context
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm, ctx: context.Background()}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

// throw turns a Go error into a JavaScript exception.
func (e *GojaEngine) throw(err error) {
	panic(e.vm.NewGoError(err))
}

func (e *GojaEngine) RegisterHost(host Host) error {
	fns := map[string]func(goja.FunctionCall) goja.Value{
		"upload": func(call goja.FunctionCall) goja.Value {
			if err := host.Upload(call.Argument(0).String()); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"select": e.indexCall(host.Select),
		"remove": e.indexCall(host.Remove),
		"page":   e.indexCall(host.SetPage),
		"placeImage": func(call goja.FunctionCall) goja.Value {
			obj := e.options(call.Argument(1))
			opts := ImageOptions{
				X:      number(obj, "x"),
				Y:      number(obj, "y"),
				Scale:  number(obj, "scale"),
				Width:  number(obj, "width"),
				Height: number(obj, "height"),
			}
			if err := host.PlaceImage(e.ctx, call.Argument(0).String(), opts); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"placeText": func(call goja.FunctionCall) goja.Value {
			obj := e.options(call.Argument(1))
			opts := TextOptions{
				X:     number(obj, "x"),
				Y:     number(obj, "y"),
				Size:  number(obj, "size"),
				Color: str(obj, "color"),
				Font:  str(obj, "font"),
			}
			if err := host.PlaceText(e.ctx, call.Argument(0).String(), opts); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"merge": func(call goja.FunctionCall) goja.Value {
			path, err := host.Merge(e.ctx, optString(call.Argument(0)))
			if err != nil {
				e.throw(err)
			}
			return e.vm.ToValue(path)
		},
		"exportTo": func(call goja.FunctionCall) goja.Value {
			path, err := host.Export(optString(call.Argument(0)))
			if err != nil {
				e.throw(err)
			}
			return e.vm.ToValue(path)
		},
		"reset": func(call goja.FunctionCall) goja.Value {
			if err := host.Reset(); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"log": func(call goja.FunctionCall) goja.Value {
			msg := ""
			if len(call.Arguments) > 0 {
				msg = call.Arguments[0].String()
			}
			host.Log(msg)
			return goja.Undefined()
		},
	}
	for name, fn := range fns {
		if err := e.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (e *GojaEngine) indexCall(fn func(int) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if err := fn(int(call.Argument(0).ToInteger())); err != nil {
			e.throw(err)
		}
		return goja.Undefined()
	}
}

func (e *GojaEngine) options(v goja.Value) *goja.Object {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.ToObject(e.vm)
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func number(obj *goja.Object, key string) *float64 {
	if obj == nil {
		return nil
	}
	v := obj.Get(key)
	if !present(v) {
		return nil
	}
	f := v.ToFloat()
	return &f
}

func str(obj *goja.Object, key string) string {
	if obj == nil {
		return ""
	}
	return optString(obj.Get(key))
}

func optString(v goja.Value) string {
	if !present(v) {
		return ""
	}
	return v.String()
}
