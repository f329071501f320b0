// Package vmexec runs a single exported function of a WebAssembly module
// from the command line.
//
// # Overview
//
// The vm-exec command loads a module, links the host imports it expects,
// calls one export and exits with that export's return value. Arguments are
// passed as a number or as a (pointer, length) pair naming bytes copied into
// the module's linear memory through its exported allocator.
//
//	vm-exec contract.wasm main
//	vm-exec contract.wasm transfer --number 42
//	vm-exec contract.wasm greet --string "hello world"
//	vm-exec contract.wasm verify --file tx.bin
//
// # Basic Usage
//
//	rt, _ := vm.New(ctx, vm.EngineWazero)
//	defer rt.Close(ctx)
//
//	l := launcher.New(rt, hostfunc.New(hostfunc.WithOutput(os.Stdout)))
//	result, err := l.Run(ctx, launcher.Request{
//	    ModulePath: "contract.wasm",
//	    Call:       launcher.Call{Entry: "greet", Mode: launcher.ModeString, Value: "hi"},
//	})
//	os.Exit(result.ExitCode)
//
// # Sessions
//
//	session, _ := l.Load(ctx, "contract.wasm")
//	defer session.Close(ctx)
//	session.Call(ctx, launcher.Call{Entry: "init"})
//	session.Call(ctx, launcher.Call{Entry: "get"}) // same linear memory
//
// See the [launcher], [hostfunc], and [vm] packages for detailed API
// documentation.
package vmexec
