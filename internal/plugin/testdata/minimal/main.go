//go:build tinygo

// Test plugin: recognizes nothing. Exercises the happy path of the ABI
// without producing events.
package main

import (
	"encoding/json"
	"unsafe"
)

// Bump allocator starting past the input region.
var heapPtr uintptr = 0x20000

//export abi_version
func abiVersion() uint32 {
	return 1
}

//export alloc
func alloc(size uint32) uint32 {
	ptr := uint32(heapPtr)
	heapPtr += uintptr(size)
	return ptr
}

//export free
func free(ptr, size uint32) {
	// Bump allocator does not reclaim.
}

//export classify_line
func classifyLine(inputPtr, inputLen uint32) uint64 {
	inputBytes := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(inputPtr))), inputLen)

	var input struct {
		Line string `json:"line"`
	}
	if err := json.Unmarshal(inputBytes, &input); err != nil {
		return encodeError("failed to parse input JSON")
	}

	return encode(map[string]interface{}{
		"ok":     true,
		"events": []interface{}{},
	})
}

func encodeError(msg string) uint64 {
	return encode(map[string]interface{}{
		"ok":    false,
		"error": msg,
	})
}

func encode(output map[string]interface{}) uint64 {
	outputJSON, _ := json.Marshal(output)
	outPtr := alloc(uint32(len(outputJSON)))
	outSlice := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(outPtr))), len(outputJSON))
	copy(outSlice, outputJSON)
	return (uint64(len(outputJSON)) << 32) | uint64(outPtr)
}

func main() {}
