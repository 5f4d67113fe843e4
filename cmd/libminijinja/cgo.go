package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../include
#define MJ_TYPES_ONLY
#include <stdlib.h>
#include "minijinja.h"

static inline void *mj_handle_to_ptr(uintptr_t h) { return (void *)h; }
static inline uintptr_t mj_ptr_to_handle(const void *p) { return (uintptr_t)p; }
*/
import "C"

import (
	"bytes"
	"unsafe"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/cabi"
)

// Live objects. C only ever sees the handle numbers.
var (
	envs   = cabi.NewTable[*cabi.Env]()
	values = cabi.NewTable[*cabi.Value]()
)

func handlePtr(h cabi.Handle) unsafe.Pointer {
	return C.mj_handle_to_ptr(C.uintptr_t(h))
}

func ptrHandle(p unsafe.Pointer) cabi.Handle {
	return cabi.Handle(C.mj_ptr_to_handle(p))
}

// goString copies a required NUL-terminated argument.
func goString(op string, s *C.char) string {
	if s == nil {
		cabi.Violate(op, "null string argument")
	}
	return C.GoString(s)
}

// goBytes copies n bytes from data. A null data pointer is only allowed
// together with n == 0.
func goBytes(op string, data *C.uint8_t, n C.uintptr_t) []byte {
	if n == 0 {
		return nil
	}
	if data == nil {
		cabi.Violate(op, "null data with length %d", uint64(n))
	}
	return bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(data)), int(n)))
}

// goArray views n C elements as a Go slice. The slice aliases C memory and
// must not outlive the call.
func goArray[T any](op string, items unsafe.Pointer, n C.uintptr_t) []T {
	if n == 0 {
		return []T{}
	}
	if items == nil {
		cabi.Violate(op, "null items with count %d", uint64(n))
	}
	return unsafe.Slice((*T)(items), int(n))
}

func cString(s string) *C.char {
	return C.CString(s)
}

func cError(err *cabi.Error) *C.mj_error {
	if err == nil {
		return nil
	}
	p := (*C.mj_error)(C.malloc(C.sizeof_mj_error))
	p.code = C.enum_mj_code(err.Code)
	p.message = C.CString(err.Message)
	return p
}

func freeError(p *C.mj_error) {
	if p == nil {
		return
	}
	C.free(unsafe.Pointer(p.message))
	C.free(unsafe.Pointer(p))
}

func freeString(p *C.char) {
	if p != nil {
		C.free(unsafe.Pointer(p))
	}
}

func renderResult(out string, err *cabi.Error) C.mj_result_env_render_template {
	var r C.mj_result_env_render_template
	if err != nil {
		r.error = cError(err)
	} else {
		r.result = cString(out)
	}
	return r
}

func heapResult(out string, err *cabi.Error) *C.mj_result_env_render_template {
	p := (*C.mj_result_env_render_template)(C.malloc(C.sizeof_mj_result_env_render_template))
	*p = renderResult(out, err)
	return p
}

func freeResult(p *C.mj_result_env_render_template) {
	if p == nil {
		return
	}
	freeString(p.result)
	freeError(p.error)
	C.free(unsafe.Pointer(p))
}

func newEnvStruct(e *cabi.Env) *C.mj_env {
	p := (*C.mj_env)(C.malloc(C.sizeof_mj_env))
	p.inner = handlePtr(envs.Put(e))
	return p
}

func newValueStruct(v *cabi.Value) *C.mj_value {
	p := (*C.mj_value)(C.malloc(C.sizeof_mj_value))
	p.inner = handlePtr(values.Put(v))
	return p
}

func freeStruct(p unsafe.Pointer) {
	C.free(p)
}
