package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../include
#define MJ_TYPES_ONLY
#include "minijinja.h"
*/
import "C"

import (
	"unsafe"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/cabi"
)

// acquire resolves p and pins the environment; the caller releases it. The
// pin is taken under the table lock so a concurrent mj_env_free cannot tear
// the environment down in between.
func acquire(op string, p *C.mj_env) *cabi.Env {
	if p == nil {
		cabi.Violate(op, "null environment")
	}
	var e *cabi.Env
	envs.With(op, ptrHandle(p.inner), func(found *cabi.Env) {
		found.Retain()
		e = found
	})
	return e
}

//export mj_env_new
func mj_env_new() *C.mj_env {
	return newEnvStruct(cabi.NewEnv())
}

//export mj_env_free
func mj_env_free(p *C.mj_env) {
	if p == nil {
		return
	}
	if e, ok := envs.Take("mj_env_free", ptrHandle(p.inner)); ok {
		e.Release()
	}
	p.inner = nil
	freeStruct(unsafe.Pointer(p))
}

//export mj_env_add_template
func mj_env_add_template(p *C.mj_env, name, source *C.char) *C.mj_error {
	const op = "mj_env_add_template"
	e := acquire(op, p)
	defer e.Release()
	return cError(e.AddTemplate(goString(op, name), goString(op, source)))
}

//export mj_env_remove_template
func mj_env_remove_template(p *C.mj_env, name *C.char) {
	const op = "mj_env_remove_template"
	e := acquire(op, p)
	defer e.Release()
	e.RemoveTemplate(goString(op, name))
}

//export mj_env_clear_templates
func mj_env_clear_templates(p *C.mj_env) {
	e := acquire("mj_env_clear_templates", p)
	defer e.Release()
	e.ClearTemplates()
}

//export mj_env_set_lstrip_blocks
func mj_env_set_lstrip_blocks(p *C.mj_env, on C.bool) {
	e := acquire("mj_env_set_lstrip_blocks", p)
	defer e.Release()
	e.SetLstripBlocks(bool(on))
}

//export mj_env_set_trim_blocks
func mj_env_set_trim_blocks(p *C.mj_env, on C.bool) {
	e := acquire("mj_env_set_trim_blocks", p)
	defer e.Release()
	e.SetTrimBlocks(bool(on))
}

//export mj_env_set_keep_trailing_newline
func mj_env_set_keep_trailing_newline(p *C.mj_env, on C.bool) {
	e := acquire("mj_env_set_keep_trailing_newline", p)
	defer e.Release()
	e.SetKeepTrailingNewline(bool(on))
}

//export mj_env_set_recursion_limit
func mj_env_set_recursion_limit(p *C.mj_env, limit C.uintptr_t) {
	e := acquire("mj_env_set_recursion_limit", p)
	defer e.Release()
	e.SetRecursionLimit(uint(limit))
}

//export mj_env_set_debug
func mj_env_set_debug(p *C.mj_env, on C.bool) {
	e := acquire("mj_env_set_debug", p)
	defer e.Release()
	e.SetDebug(bool(on))
}

//export mj_env_set_undefined_behavior
func mj_env_set_undefined_behavior(p *C.mj_env, behavior C.enum_mj_undefined_behavior) {
	e := acquire("mj_env_set_undefined_behavior", p)
	defer e.Release()
	e.SetUndefinedBehavior(cabi.UndefinedBehavior(behavior))
}

// optValue resolves a context handle; null means an empty context.
func optValue(op string, p *C.mj_value) *cabi.Value {
	if p == nil {
		return nil
	}
	return values.Get(op, ptrHandle(p.inner))
}

//export mj_env_render_template
func mj_env_render_template(p *C.mj_env, name *C.char, ctx *C.mj_value) C.mj_result_env_render_template {
	const op = "mj_env_render_template"
	e := acquire(op, p)
	defer e.Release()
	return renderResult(e.Render(goString(op, name), optValue(op, ctx)))
}

//export mj_env_render_named_str
func mj_env_render_named_str(p *C.mj_env, name, source *C.char, ctx *C.mj_value) C.mj_result_env_render_template {
	const op = "mj_env_render_named_str"
	e := acquire(op, p)
	defer e.Release()
	return renderResult(e.RenderNamedString(goString(op, name), goString(op, source), optValue(op, ctx)))
}

//export mj_env_render
func mj_env_render(p *C.mj_env, name *C.char, data *C.uint8_t, n C.uintptr_t) *C.mj_result_env_render_template {
	const op = "mj_env_render"
	e := acquire(op, p)
	defer e.Release()
	return heapResult(e.RenderJSON(goString(op, name), goBytes(op, data, n)))
}

//export mj_env_render_named_string
func mj_env_render_named_string(p *C.mj_env, name, source *C.char, data *C.uint8_t, n C.uintptr_t) *C.mj_result_env_render_template {
	const op = "mj_env_render_named_string"
	e := acquire(op, p)
	defer e.Release()
	return heapResult(e.RenderNamedStringJSON(goString(op, name), goString(op, source), goBytes(op, data, n)))
}

//export mj_result_env_render_template_free
func mj_result_env_render_template_free(p *C.mj_result_env_render_template) {
	freeResult(p)
}

//export mj_error_free
func mj_error_free(p *C.mj_error) {
	freeError(p)
}

//export mj_str_free
func mj_str_free(s *C.char) {
	freeString(s)
}
