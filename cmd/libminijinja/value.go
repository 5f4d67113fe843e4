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

func value(op string, p *C.mj_value) *cabi.Value {
	if p == nil {
		cabi.Violate(op, "null value")
	}
	return values.Get(op, ptrHandle(p.inner))
}

//export mj_value_new
func mj_value_new() *C.mj_value {
	return newValueStruct(cabi.NewMap())
}

//export mj_value_new_list
func mj_value_new_list() *C.mj_value {
	return newValueStruct(cabi.NewList())
}

//export mj_value_free
func mj_value_free(p *C.mj_value) {
	if p == nil {
		return
	}
	values.Take("mj_value_free", ptrHandle(p.inner))
	p.inner = nil
	freeStruct(unsafe.Pointer(p))
}

//export mj_value_set_string
func mj_value_set_string(p *C.mj_value, key, val *C.char) {
	const op = "mj_value_set_string"
	value(op, p).SetString(goString(op, key), goString(op, val))
}

//export mj_value_set_int
func mj_value_set_int(p *C.mj_value, key *C.char, val C.int64_t) {
	const op = "mj_value_set_int"
	value(op, p).SetInt64(goString(op, key), int64(val))
}

//export mj_value_set_int32
func mj_value_set_int32(p *C.mj_value, key *C.char, val C.int32_t) {
	const op = "mj_value_set_int32"
	value(op, p).SetInt32(goString(op, key), int32(val))
}

//export mj_value_set_int16
func mj_value_set_int16(p *C.mj_value, key *C.char, val C.int16_t) {
	const op = "mj_value_set_int16"
	value(op, p).SetInt16(goString(op, key), int16(val))
}

//export mj_value_set_int8
func mj_value_set_int8(p *C.mj_value, key *C.char, val C.int8_t) {
	const op = "mj_value_set_int8"
	value(op, p).SetInt8(goString(op, key), int8(val))
}

//export mj_value_set_uint
func mj_value_set_uint(p *C.mj_value, key *C.char, val C.uint64_t) {
	const op = "mj_value_set_uint"
	value(op, p).SetUint64(goString(op, key), uint64(val))
}

//export mj_value_set_uint32
func mj_value_set_uint32(p *C.mj_value, key *C.char, val C.uint32_t) {
	const op = "mj_value_set_uint32"
	value(op, p).SetUint32(goString(op, key), uint32(val))
}

//export mj_value_set_uint16
func mj_value_set_uint16(p *C.mj_value, key *C.char, val C.uint16_t) {
	const op = "mj_value_set_uint16"
	value(op, p).SetUint16(goString(op, key), uint16(val))
}

//export mj_value_set_uint8
func mj_value_set_uint8(p *C.mj_value, key *C.char, val C.uint8_t) {
	const op = "mj_value_set_uint8"
	value(op, p).SetUint8(goString(op, key), uint8(val))
}

//export mj_value_set_float
func mj_value_set_float(p *C.mj_value, key *C.char, val C.double) {
	const op = "mj_value_set_float"
	value(op, p).SetFloat64(goString(op, key), float64(val))
}

//export mj_value_set_float32
func mj_value_set_float32(p *C.mj_value, key *C.char, val C.float) {
	const op = "mj_value_set_float32"
	value(op, p).SetFloat32(goString(op, key), float32(val))
}

//export mj_value_set_bool
func mj_value_set_bool(p *C.mj_value, key *C.char, val C.bool) {
	const op = "mj_value_set_bool"
	value(op, p).SetBool(goString(op, key), bool(val))
}

//export mj_value_set_value
func mj_value_set_value(p *C.mj_value, key *C.char, val *C.mj_value) {
	const op = "mj_value_set_value"
	value(op, p).SetValue(goString(op, key), value(op, val))
}

//export mj_value_set_json
func mj_value_set_json(p *C.mj_value, key *C.char, data *C.uint8_t, n C.uintptr_t) *C.mj_error {
	const op = "mj_value_set_json"
	v := value(op, p)
	return cError(v.SetJSON(goString(op, key), goBytes(op, data, n)))
}

//export mj_value_set_list_string
func mj_value_set_list_string(p *C.mj_value, key *C.char, items **C.char, n C.uintptr_t) {
	const op = "mj_value_set_list_string"
	v := value(op, p)
	ptrs := goArray[*C.char](op, unsafe.Pointer(items), n)
	strs := make([]string, len(ptrs))
	for i, s := range ptrs {
		strs[i] = goString(op, s)
	}
	cabi.SetList(v, goString(op, key), strs)
}

//export mj_value_set_list_int
func mj_value_set_list_int(p *C.mj_value, key *C.char, items *C.int64_t, n C.uintptr_t) {
	const op = "mj_value_set_list_int"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[int64](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_int32
func mj_value_set_list_int32(p *C.mj_value, key *C.char, items *C.int32_t, n C.uintptr_t) {
	const op = "mj_value_set_list_int32"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[int32](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_int16
func mj_value_set_list_int16(p *C.mj_value, key *C.char, items *C.int16_t, n C.uintptr_t) {
	const op = "mj_value_set_list_int16"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[int16](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_int8
func mj_value_set_list_int8(p *C.mj_value, key *C.char, items *C.int8_t, n C.uintptr_t) {
	const op = "mj_value_set_list_int8"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[int8](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_uint
func mj_value_set_list_uint(p *C.mj_value, key *C.char, items *C.uint64_t, n C.uintptr_t) {
	const op = "mj_value_set_list_uint"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[uint64](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_uint32
func mj_value_set_list_uint32(p *C.mj_value, key *C.char, items *C.uint32_t, n C.uintptr_t) {
	const op = "mj_value_set_list_uint32"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[uint32](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_uint16
func mj_value_set_list_uint16(p *C.mj_value, key *C.char, items *C.uint16_t, n C.uintptr_t) {
	const op = "mj_value_set_list_uint16"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[uint16](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_uint8
func mj_value_set_list_uint8(p *C.mj_value, key *C.char, items *C.uint8_t, n C.uintptr_t) {
	const op = "mj_value_set_list_uint8"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[uint8](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_float
func mj_value_set_list_float(p *C.mj_value, key *C.char, items *C.double, n C.uintptr_t) {
	const op = "mj_value_set_list_float"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[float64](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_float32
func mj_value_set_list_float32(p *C.mj_value, key *C.char, items *C.float, n C.uintptr_t) {
	const op = "mj_value_set_list_float32"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[float32](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_bool
func mj_value_set_list_bool(p *C.mj_value, key *C.char, items *C.bool, n C.uintptr_t) {
	const op = "mj_value_set_list_bool"
	v := value(op, p)
	cabi.SetList(v, goString(op, key), goArray[bool](op, unsafe.Pointer(items), n))
}

//export mj_value_set_list_value
func mj_value_set_list_value(p *C.mj_value, key *C.char, items **C.mj_value, n C.uintptr_t) {
	const op = "mj_value_set_list_value"
	v := value(op, p)
	ptrs := goArray[*C.mj_value](op, unsafe.Pointer(items), n)
	srcs := make([]*cabi.Value, len(ptrs))
	for i, src := range ptrs {
		srcs[i] = value(op, src)
	}
	v.SetListValue(goString(op, key), srcs)
}

//export mj_value_append_string
func mj_value_append_string(p *C.mj_value, val *C.char) {
	const op = "mj_value_append_string"
	value(op, p).AppendString(goString(op, val))
}

//export mj_value_append_int
func mj_value_append_int(p *C.mj_value, val C.int64_t) {
	value("mj_value_append_int", p).AppendInt64(int64(val))
}

//export mj_value_append_int32
func mj_value_append_int32(p *C.mj_value, val C.int32_t) {
	value("mj_value_append_int32", p).AppendInt32(int32(val))
}

//export mj_value_append_int16
func mj_value_append_int16(p *C.mj_value, val C.int16_t) {
	value("mj_value_append_int16", p).AppendInt16(int16(val))
}

//export mj_value_append_int8
func mj_value_append_int8(p *C.mj_value, val C.int8_t) {
	value("mj_value_append_int8", p).AppendInt8(int8(val))
}

//export mj_value_append_uint
func mj_value_append_uint(p *C.mj_value, val C.uint64_t) {
	value("mj_value_append_uint", p).AppendUint64(uint64(val))
}

//export mj_value_append_uint32
func mj_value_append_uint32(p *C.mj_value, val C.uint32_t) {
	value("mj_value_append_uint32", p).AppendUint32(uint32(val))
}

//export mj_value_append_uint16
func mj_value_append_uint16(p *C.mj_value, val C.uint16_t) {
	value("mj_value_append_uint16", p).AppendUint16(uint16(val))
}

//export mj_value_append_uint8
func mj_value_append_uint8(p *C.mj_value, val C.uint8_t) {
	value("mj_value_append_uint8", p).AppendUint8(uint8(val))
}

//export mj_value_append_float
func mj_value_append_float(p *C.mj_value, val C.double) {
	value("mj_value_append_float", p).AppendFloat64(float64(val))
}

//export mj_value_append_float32
func mj_value_append_float32(p *C.mj_value, val C.float) {
	value("mj_value_append_float32", p).AppendFloat32(float32(val))
}

//export mj_value_append_bool
func mj_value_append_bool(p *C.mj_value, val C.bool) {
	value("mj_value_append_bool", p).AppendBool(bool(val))
}

//export mj_value_append_value
func mj_value_append_value(p *C.mj_value, val *C.mj_value) {
	const op = "mj_value_append_value"
	value(op, p).AppendValue(value(op, val))
}

//export mj_value_append_json
func mj_value_append_json(p *C.mj_value, data *C.uint8_t, n C.uintptr_t) *C.mj_error {
	const op = "mj_value_append_json"
	v := value(op, p)
	return cError(v.AppendJSON(goBytes(op, data, n)))
}
