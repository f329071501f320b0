// Package vm abstracts the WebAssembly engine used to run a module.
//
// A [Runtime] instantiates module bytes against an [ImportSet] of host
// functions and returns an [Instance] exposing exported functions and linear
// memory. Two engines are available through [New]:
//
//	rt, err := vm.New(ctx, vm.EngineWazero, vm.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	inst, err := rt.Instantiate(ctx, wasm, imports)
//
// wazero is the default and needs no cgo. wasmtime is available in cgo builds.
//
// Values crossing the boundary use wazero's uint64 encoding; see [EncodeI32],
// [DecodeF64] and friends.
package vm
