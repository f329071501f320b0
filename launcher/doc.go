// Package launcher loads a WebAssembly module and invokes one of its
// exported functions with an optional argument.
//
// A [Request] names the module, the entry point and the argument [Mode]:
//
//	ModeNone    call with no arguments
//	ModeNumber  parse the value as a finite number and pass it converted
//	            to the entry point's first parameter type
//	ModeString  copy the UTF-8 bytes into linear memory, pass (ptr, len)
//	ModeFile    copy the file's bytes into linear memory, pass (ptr, len)
//
// Memory for string and file arguments is reserved by calling the module's
// allocator export (default [DefaultAllocator]) with the byte count. A null
// address for a non-empty request fails with an allocation error. The
// launcher never frees that memory.
//
// The entry point's first result becomes the exit code: floats truncate
// toward zero, NaN and infinities map to 1, and the integer is reduced
// modulo 256 into [0, 255]. A WASI proc_exit(n) yields n reduced the same
// way.
//
// Failures are returned as *[Error] values classified by [Kind]; use
// errors.Is with the Err* sentinels or [KindOf] to inspect them.
package launcher
