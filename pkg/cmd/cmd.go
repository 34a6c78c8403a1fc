package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"

	"github.com/gantryhq/gantry/pkg/progress"
	"github.com/jessevdk/go-flags"
)

type Cmd struct {
	syn, name string
	f         reflect.Value

	wantArgs bool

	opts   reflect.Value
	parser *flags.Parser
}

// New wraps a function of the form func(ctx, opts) error, or
// func(ctx, opts, args) error when the command takes positional
// arguments, into a cli.Command.
func New(name, syn string, f interface{}) *Cmd {
	rv := reflect.ValueOf(f)

	if rv.Kind() != reflect.Func {
		panic("must pass a function")
	}

	rt := rv.Type()

	if rt.NumIn() != 2 && rt.NumIn() != 3 {
		panic("must provide two or three arguments only")
	}

	if rt.NumOut() != 1 {
		panic("must return one argument only")
	}

	in := rt.In(1)

	if in.Kind() != reflect.Struct {
		panic("argument must be a struct")
	}

	wantArgs := rt.NumIn() == 3

	if wantArgs && rt.In(2) != reflect.TypeOf([]string(nil)) {
		panic("third argument must be []string")
	}

	sv := reflect.New(in)

	parser := flags.NewNamedParser(name, flags.Default)
	parser.ShortDescription = syn
	parser.LongDescription = syn

	_, err := parser.AddGroup("Application Options", "", sv.Interface())
	if err != nil {
		panic(err)
	}

	return &Cmd{
		syn:      syn,
		name:     name,
		f:        rv,
		wantArgs: wantArgs,
		opts:     sv,
		parser:   parser,
	}
}

func (w *Cmd) Help() string {
	var buf bytes.Buffer
	w.parser.WriteHelp(&buf)
	return buf.String()
}

func (w *Cmd) Synopsis() string {
	return w.syn
}

func (w *Cmd) Run(args []string) int {
	rest, err := w.parser.ParseArgs(args)
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelOnSignal(cancel, cancelSignals...)

	ctx = progress.Open(ctx, os.Stderr)

	in := []reflect.Value{reflect.ValueOf(ctx), w.opts.Elem()}
	if w.wantArgs {
		in = append(in, reflect.ValueOf(rest))
	}

	rets := w.f.Call(in)

	if err, ok := rets[0].Interface().(error); ok {
		if err != nil {
			fmt.Printf("! Error: %+v\n", err)
			return 1
		}
	}

	return 0
}

func cancelOnSignal(cancel func(), signals ...os.Signal) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, signals...)

	go func() {
		for range c {
			cancel()
		}
	}()
}
