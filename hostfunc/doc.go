// Package hostfunc provides the host imports ("shim") a module is linked
// against.
//
// Host functions are Go functions the guest calls through its import
// section. They reach back into the calling module through the instance the
// import set is bound to.
//
// # Shim
//
// A [Shim] produces one import table per instantiation:
//
//	shim := hostfunc.New(hostfunc.WithOutput(os.Stdout))
//	imports, bind := shim.CreateImportSet()
//	inst, err := rt.Instantiate(ctx, wasm, imports)
//	if err != nil {
//	    return err
//	}
//	bind(inst) // host functions may now touch inst's memory
//
// # Built-in Imports
//
// Registered under module "env" unless [WithModule] says otherwise:
//   - __lea_log(ptr i32, len i32): writes the guest string as one line
//   - __lea_abort(code i32): traps with an [AbortError]
//   - __lea_time() -> i64: Unix time in milliseconds
//
// # Custom Imports
//
//	shim.Registry().Register(hostfunc.Import{
//	    Module:  "env",
//	    Name:    "add",
//	    Params:  []vm.ValueType{vm.ValueTypeI32, vm.ValueTypeI32},
//	    Results: []vm.ValueType{vm.ValueTypeI32},
//	    Func: func(ctx context.Context, inst vm.Instance, p []uint64) ([]uint64, error) {
//	        return []uint64{vm.EncodeI32(vm.DecodeI32(p[0]) + vm.DecodeI32(p[1]))}, nil
//	    },
//	})
package hostfunc
