// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package convert shares buffers between strided arrays and matrices.
//
// # Overview
//
// An Array lives in a reference-counted runtime guarded by an interpreter
// lock. A Mat is an n-dimensional matrix with interleaved channels whose
// memory is managed by an Allocator. A Converter moves values between the
// two:
//   - Arrays whose layout a matrix can describe are viewed in place
//   - Other arrays are cast or copied exactly once
//   - Matrices allocated through the converter's bridge hand their backing
//     array back without copying
//
// # Basic Usage
//
//	rt := convert.NewRuntime()
//	conv := convert.New(rt, convert.DefaultOptions())
//
//	ctx, release := rt.GIL().Acquire(context.Background())
//	a, _ := convert.FromSlice(ctx, rt, []float32{1, 2, 3, 4, 5, 6}, convert.Shape{2, 3})
//	release()
//
//	m, err := conv.ToMat(context.Background(), a) // views a's memory
//	if err != nil {
//	    return err
//	}
//	defer m.Release()
//
//	out, err := conv.ToArray(context.Background(), m) // returns a itself
//
// # Ownership
//
// Every matrix holds one reference to its storage record, and every record
// created by the bridge holds one reference to an array. The array is
// released under the interpreter lock when the last matrix sharing the
// record is released. Arrays returned by ToArray carry a new reference that
// belongs to the caller.
//
// # Concurrency
//
// Conversions are single-threaded and may run concurrently with each other.
// Element copies run with the interpreter lock released. Functions that take
// a context and touch the runtime acquire the lock themselves; the lock is
// reentrant through the context, so callers that already hold it pass their
// context along.
package convert
