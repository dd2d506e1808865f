package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/born-ml/ndbridge/internal/bridge"
	"github.com/born-ml/ndbridge/internal/layout"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"github.com/born-ml/ndbridge/internal/parallel"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type layoutReport struct {
	Shape   []int  `yaml:"shape,flow"`
	Strides []int  `yaml:"strides,flow"`
	DType   string `yaml:"dtype"`
}

type matReport struct {
	Type     string `yaml:"type"`
	Sizes    []int  `yaml:"sizes,flow"`
	Steps    []int  `yaml:"steps,flow"`
	Channels int    `yaml:"channels"`
}

type analysisReport struct {
	Input      layoutReport `yaml:"input"`
	Supported  bool         `yaml:"supported"`
	Error      string       `yaml:"error,omitempty"`
	CastTo     string       `yaml:"cast_to,omitempty"`
	Copy       bool         `yaml:"copy"`
	Transposed bool         `yaml:"transposed"`
	Matrix     *matReport   `yaml:"matrix,omitempty"`
}

func analyzeCommand() *command {
	var (
		shape   []int
		strides []int
		dtype   string
	)
	return &command{
		name:    "analyze",
		summary: "Show how an array layout converts to a matrix",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
			fs.IntSliceVar(&shape, "shape", nil, "array shape")
			fs.IntSliceVar(&strides, "strides", nil, "byte strides (default: C-contiguous)")
			fs.StringVar(&dtype, "dtype", "float32", "element type")
			return fs
		},
		run: func(e *env, _ []string) error {
			code, err := ndarray.ParseTypeCode(dtype)
			if err != nil {
				return err
			}
			if strides == nil {
				strides = ndarray.ContiguousStrides(shape, code.Size())
			}
			return writeYAML(e, analyze(shape, strides, code))
		},
	}
}

func analyze(shape, strides []int, code ndarray.TypeCode) analysisReport {
	r := analysisReport{Input: layoutReport{Shape: shape, Strides: strides, DType: code.String()}}

	plan, err := layout.Analyze(shape, strides, code)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Supported = true
	r.Copy = plan.CopyNeeded
	r.Transposed = plan.Transposed
	if plan.CastNeeded {
		r.CastTo = plan.CastTo.String()
	}
	if !plan.CopyNeeded {
		d := plan.Descriptor
		r.Matrix = &matReport{Type: d.Type.String(), Sizes: d.Sizes, Steps: d.Steps, Channels: d.Channels}
	}
	return r
}

type roundTripReport struct {
	Input     layoutReport `yaml:"input"`
	Matrix    matReport    `yaml:"matrix"`
	ZeroCopy  bool         `yaml:"zero_copy"`
	Output    layoutReport `yaml:"output"`
	SameArray bool         `yaml:"same_array"`
	Digest    string       `yaml:"digest"`
	Match     bool         `yaml:"match"`
}

var errMismatch = errors.New("round trip changed the array contents")

func roundTripCommand() *command {
	var s sample
	return &command{
		name:    "roundtrip",
		summary: "Convert a generated array to a matrix and back",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("roundtrip", pflag.ContinueOnError)
			s.addFlags(fs)
			return fs
		},
		run: func(e *env, _ []string) error {
			rt := ndarray.NewRuntime(e.cfg.RuntimeOptions()...)
			conv := bridge.NewConverter(bridge.New(rt), e.cfg.ConverterOptions())

			r, err := roundTrip(context.Background(), conv, s)
			if err != nil {
				return err
			}
			if err := writeYAML(e, r); err != nil {
				return err
			}
			if !r.Match {
				return errMismatch
			}
			if n := rt.Live(); n != 0 {
				return fmt.Errorf("%d arrays still live after round trip", n)
			}
			return nil
		},
	}
}

// roundTrip converts s to a matrix and back, releasing everything it
// created before returning. ctx must not hold the GIL.
func roundTrip(ctx context.Context, conv *bridge.Converter, s sample) (roundTripReport, error) {
	rt := conv.Bridge().Runtime()
	var r roundTripReport

	gctx, release := rt.GIL().Acquire(ctx)
	a, owned, err := s.build(gctx, rt)
	release()
	if err != nil {
		return r, err
	}
	defer decRefAll(ctx, rt, owned)

	r.Input = layoutReport{Shape: a.Shape(), Strides: a.Strides(), DType: a.Type().String()}

	m, err := conv.ToMat(ctx, a)
	if err != nil {
		return r, err
	}
	defer m.Release()
	r.Matrix = matReport{
		Type:     m.Type().String(),
		Sizes:    m.Sizes(),
		Steps:    m.Steps(),
		Channels: m.Type().Channels(),
	}
	r.ZeroCopy = m.DataPtr() == a.DataPtr()

	out, err := conv.ToArray(ctx, m)
	if err != nil {
		return r, err
	}
	defer decRefAll(ctx, rt, []*ndarray.Array{out})

	r.Output = layoutReport{Shape: out.Shape(), Strides: out.Strides(), DType: out.Type().String()}
	r.SameArray = out == a

	want, err := expectedDigest(ctx, rt, a, out.Type())
	if err != nil {
		return r, err
	}
	got := out.Digest()
	r.Digest = ndarray.FormatDigest(got)
	r.Match = got == want
	return r, nil
}

// expectedDigest is the digest of a's values converted to code.
func expectedDigest(ctx context.Context, rt *ndarray.Runtime, a *ndarray.Array, code ndarray.TypeCode) ([32]byte, error) {
	if a.Type() == code {
		return a.Digest(), nil
	}
	ctx, release := rt.GIL().Acquire(ctx)
	defer release()

	cast, err := rt.Cast(ctx, a, code)
	if err != nil {
		return [32]byte{}, err
	}
	defer rt.DecRef(ctx, cast)
	return cast.Digest(), nil
}

func decRefAll(ctx context.Context, rt *ndarray.Runtime, arrays []*ndarray.Array) {
	ctx, release := rt.GIL().Acquire(ctx)
	defer release()
	for _, a := range arrays {
		rt.DecRef(ctx, a)
	}
}

// stressSamples cover the shared and copied conversion paths.
var stressSamples = []sample{
	{shape: []int{16, 16}, dtype: "float32", flip: -1, step: 1},
	{shape: []int{12, 8, 3}, dtype: "uint8", flip: -1, step: 1},
	{shape: []int{9, 7}, dtype: "int16", flip: 0, step: 1},
	{shape: []int{8, 12}, dtype: "float64", transpose: true, flip: -1, step: 1},
	{shape: []int{6, 10}, dtype: "int32", flip: -1, step: 2},
	{shape: []int{4, 4}, dtype: "int64", flip: -1, step: 1},
	{shape: []int{}, dtype: "uint16", flip: -1, step: 1},
}

type stressReport struct {
	Jobs     int     `yaml:"jobs"`
	Workers  int     `yaml:"workers"`
	ZeroCopy int64   `yaml:"zero_copy"`
	Copied   int64   `yaml:"copied"`
	Seconds  float64 `yaml:"seconds"`
	Live     int     `yaml:"live_arrays"`
}

func stressCommand() *command {
	var workers, iterations int
	return &command{
		name:    "stress",
		summary: "Run round trips concurrently and check for leaks",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("stress", pflag.ContinueOnError)
			fs.IntVar(&workers, "workers", 0, "concurrent workers (default: stress.workers)")
			fs.IntVar(&iterations, "iterations", 0, "round trips per worker (default: stress.iterations)")
			return fs
		},
		run: func(e *env, _ []string) error {
			if workers > 0 {
				e.cfg.Stress.Workers = workers
			}
			if iterations > 0 {
				e.cfg.Stress.Iterations = iterations
			}
			r, err := stress(e)
			if err != nil {
				return err
			}
			return writeYAML(e, r)
		},
	}
}

func stress(e *env) (stressReport, error) {
	rt := ndarray.NewRuntime(e.cfg.RuntimeOptions()...)
	conv := bridge.NewConverter(bridge.New(rt), e.cfg.ConverterOptions())
	pcfg := e.cfg.ParallelConfig()
	pcfg.MinChunkSize = 1

	n := max(pcfg.NumWorkers, 1) * e.cfg.Stress.Iterations
	var zeroCopy, copied atomic.Int64
	start := time.Now()

	err := parallel.ForErr(n, func(i int) error {
		s := stressSamples[i%len(stressSamples)]
		r, err := roundTrip(context.Background(), conv, s)
		if err != nil {
			return fmt.Errorf("job %d (%s): %w", i, s, err)
		}
		if !r.Match {
			return fmt.Errorf("job %d (%s): %w", i, s, errMismatch)
		}
		if r.ZeroCopy {
			zeroCopy.Add(1)
		} else {
			copied.Add(1)
		}
		return nil
	}, pcfg)

	r := stressReport{
		Jobs:     n,
		Workers:  max(pcfg.NumWorkers, 1),
		ZeroCopy: zeroCopy.Load(),
		Copied:   copied.Load(),
		Seconds:  time.Since(start).Seconds(),
		Live:     rt.Live(),
	}
	e.logger.Info("stress finished",
		zap.Int("jobs", r.Jobs),
		zap.Int("workers", r.Workers),
		zap.Int64("zero_copy", r.ZeroCopy),
		zap.Int64("copied", r.Copied),
		zap.Int("live_arrays", r.Live))

	if err != nil {
		return r, err
	}
	if r.Live != 0 {
		return r, fmt.Errorf("%d arrays leaked", r.Live)
	}
	return r, nil
}

func writeYAML(e *env, v any) error {
	enc := yaml.NewEncoder(e.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
