package plugin

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestBusOrderAndHook(t *testing.T) {
	bus := NewBus()
	var calls []string

	appendName := func(name string) HandlerFunc {
		return func(ctx context.Context, args Args) (any, error) {
			calls = append(calls, name)
			seen, _ := args["seen"].([]string)
			return append(append([]string(nil), seen...), name), nil
		}
	}
	bus.Subscribe("a", "chain", appendName("first"))
	bus.Subscribe("b", "chain", appendName("second"))
	bus.Subscribe("c", "chain", appendName("third"))

	hook := func(result any, args Args) Args {
		args["seen"] = result
		return args
	}

	args, err := bus.EmitContext(context.Background(), "chain", Args{}, hook)
	if err != nil {
		t.Fatalf("EmitContext() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("call order = %v, want %v", calls, want)
	}
	if !reflect.DeepEqual(args["seen"], want) {
		t.Errorf("chained args = %v, want %v", args["seen"], want)
	}
}

func TestBusEmitWithoutHandlers(t *testing.T) {
	bus := NewBus()
	in := Args{"x": 1}
	out, err := bus.Emit("nobody-listens", in, nil)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Emit() = %v, want %v", out, in)
	}
	if bus.HasHandlers("nobody-listens") {
		t.Error("HasHandlers() = true, want false")
	}
}

func TestBusHandlerError(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	ran := false

	bus.Subscribe("broken", "ev", HandlerFunc(func(context.Context, Args) (any, error) {
		return nil, boom
	}))
	bus.Subscribe("after", "ev", HandlerFunc(func(context.Context, Args) (any, error) {
		ran = true
		return nil, nil
	}))

	_, err := bus.Emit("ev", nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Emit() error = %v, want boom", err)
	}
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.PluginID != "broken" || herr.Event != "ev" {
		t.Errorf("error = %#v, want HandlerError from broken/ev", err)
	}
	if ran {
		t.Error("handler after a failing handler must not run")
	}
}

func TestBusContextCancelled(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	second := false

	bus.Subscribe("p", "ev", HandlerFunc(func(context.Context, Args) (any, error) {
		cancel()
		return nil, nil
	}))
	bus.Subscribe("p", "ev", HandlerFunc(func(context.Context, Args) (any, error) {
		second = true
		return nil, nil
	}))

	if _, err := bus.EmitContext(ctx, "ev", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("EmitContext() error = %v, want context.Canceled", err)
	}
	if second {
		t.Error("second handler ran after cancellation")
	}
}
