// Package plugin runs WebAssembly classifier plugins for deadlog-go.
package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWasm indicates the wasm file is invalid or corrupted.
	ErrInvalidWasm = errors.New("invalid wasm file")

	// ErrABIVersionMismatch indicates the plugin was built against an
	// incompatible ABI version.
	ErrABIVersionMismatch = errors.New("abi version mismatch")

	// ErrMissingExport indicates a required export function is missing.
	ErrMissingExport = errors.New("missing required export function")

	// ErrPluginPanic indicates the plugin panicked during execution.
	ErrPluginPanic = errors.New("plugin panicked")

	// ErrTimeout indicates the plugin exceeded the execution timeout.
	ErrTimeout = errors.New("plugin timeout")

	// ErrFileTooLarge indicates the wasm file exceeds the size limit.
	ErrFileTooLarge = errors.New("wasm file too large")
)

// ABIError reports a violation of the plugin ABI contract.
type ABIError struct {
	Function string
	Reason   string
}

func (e *ABIError) Error() string {
	return fmt.Sprintf("abi error in %s: %s", e.Function, e.Reason)
}

// PluginError is an error reported by the plugin itself through the
// classify_line output envelope.
type PluginError struct {
	Code    string
	Message string
}

func (e *PluginError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("plugin error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("plugin error: %s", e.Message)
}

// RuntimeError wraps an error from the wazero runtime.
type RuntimeError struct {
	Operation string
	Err       error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("wasm runtime error during %s: %v", e.Operation, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
