package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/deadlog/deadlog-go/pkg/deadlog"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

const (
	// DefaultTimeout is the default budget for one classify_line call.
	DefaultTimeout = 50 * time.Millisecond

	// MaxOutputSize caps the output a plugin may return (1MB).
	MaxOutputSize = 1 * 1024 * 1024
)

// WasmClassifier implements deadlog.Classifier using a WebAssembly plugin.
// Each ClassifyLine call instantiates a fresh module, so it is safe for
// concurrent use.
type WasmClassifier struct {
	compiled      *compiledWasm
	timeout       atomic.Int64 // nanoseconds
	logger        *slog.Logger
	abiVersion    uint32
	moduleCounter atomic.Uint64
}

// Load loads a classifier plugin from the given wasm file.
func Load(ctx context.Context, path string, logger *slog.Logger) (*WasmClassifier, error) {
	compiled, err := loadWasm(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load wasm: %w", err)
	}

	// Instantiate once to read the ABI version the plugin declares.
	modConfig := wazero.NewModuleConfig().WithName("plugin-init")
	mod, err := compiled.runtime.InstantiateModule(ctx, compiled.compiled, modConfig)
	if err != nil {
		compiled.Close(context.Background())
		return nil, &RuntimeError{Operation: "initial module instantiation", Err: err}
	}

	abiVersionFn := mod.ExportedFunction("abi_version")
	if abiVersionFn == nil {
		cleanupCtx := context.Background()
		mod.Close(cleanupCtx)
		compiled.Close(cleanupCtx)
		return nil, &ABIError{Function: "abi_version", Reason: "not exported"}
	}

	results, err := abiVersionFn.Call(ctx)
	mod.Close(ctx)
	if err != nil {
		compiled.Close(context.Background())
		return nil, &RuntimeError{Operation: "abi_version call", Err: err}
	}
	if len(results) == 0 {
		compiled.Close(context.Background())
		return nil, &ABIError{Function: "abi_version", Reason: "no return value"}
	}

	abiVersion := uint32(results[0])
	if abiVersion != ExpectedABIVersion {
		compiled.Close(context.Background())
		return nil, ErrABIVersionMismatch
	}

	c := &WasmClassifier{
		compiled:   compiled,
		logger:     logger,
		abiVersion: abiVersion,
	}
	c.timeout.Store(int64(DefaultTimeout))
	return c, nil
}

// ClassifyLine classifies a single log line through the plugin's
// classify_line export. Safe for concurrent use.
func (c *WasmClassifier) ClassifyLine(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
	if c.compiled == nil {
		return deadlog.ClassifyResult{}, errors.New("classifier is closed")
	}

	timeout := time.Duration(c.timeout.Load())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Unique names keep concurrent instances from colliding.
	name := fmt.Sprintf("plugin-%d", c.moduleCounter.Add(1))
	modConfig := wazero.NewModuleConfig().WithName(name)
	mod, err := c.compiled.runtime.InstantiateModule(ctx, c.compiled.compiled, modConfig)
	if err != nil {
		return deadlog.ClassifyResult{}, &RuntimeError{Operation: "module instantiation", Err: err}
	}
	defer mod.Close(context.Background())

	type inputData struct {
		Line string `json:"line"`
	}
	inputJSON, err := json.Marshal(inputData{Line: line})
	if err != nil {
		return deadlog.ClassifyResult{}, fmt.Errorf("failed to marshal input: %w", err)
	}

	if len(inputJSON) > InputRegionSize {
		return deadlog.ClassifyResult{}, fmt.Errorf("input too large: %d bytes (max %d)", len(inputJSON), InputRegionSize)
	}

	memSize := mod.Memory().Size()
	if required := InputRegion + uint32(len(inputJSON)); required > memSize {
		return deadlog.ClassifyResult{}, fmt.Errorf("input region (0x%x) + input size (%d) exceeds wasm memory size (%d bytes), plugin may need larger initial memory", InputRegion, len(inputJSON), memSize)
	}

	if !mod.Memory().Write(InputRegion, inputJSON) {
		return deadlog.ClassifyResult{}, fmt.Errorf("failed to write input to wasm memory")
	}

	classifyFn := mod.ExportedFunction("classify_line")
	if classifyFn == nil {
		return deadlog.ClassifyResult{}, &ABIError{Function: "classify_line", Reason: "not exported"}
	}

	results, err := classifyFn.Call(ctx, uint64(InputRegion), uint64(len(inputJSON)))
	if err != nil {
		if ctx.Err() != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return deadlog.ClassifyResult{}, ErrTimeout
			}
			return deadlog.ClassifyResult{}, ctx.Err()
		}
		return deadlog.ClassifyResult{}, &RuntimeError{Operation: "classify_line call", Err: err}
	}
	if len(results) == 0 {
		return deadlog.ClassifyResult{}, &ABIError{Function: "classify_line", Reason: "no return value"}
	}

	// Return value packs (out_len << 32) | out_ptr.
	packed := results[0]
	outPtr := uint32(packed & 0xFFFFFFFF)
	outLen := uint32(packed >> 32)

	if outLen > MaxOutputSize {
		return deadlog.ClassifyResult{}, fmt.Errorf("plugin output too large: %d bytes (max %d)", outLen, MaxOutputSize)
	}

	outBytes, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return deadlog.ClassifyResult{}, fmt.Errorf("failed to read output from wasm memory")
	}

	// Memory().Read returns a view into plugin memory. Copy before free()
	// or the plugin could overwrite the region under us.
	outCopy := make([]byte, len(outBytes))
	copy(outCopy, outBytes)

	if freeFn := mod.ExportedFunction("free"); freeFn != nil {
		_, _ = freeFn.Call(ctx, uint64(outPtr), uint64(outLen))
	}

	type outputData struct {
		Ok     bool          `json:"ok"`
		Events []event.Event `json:"events"`
		Error  *string       `json:"error,omitempty"`
		Code   *string       `json:"code,omitempty"`
	}

	var output outputData
	if err := json.Unmarshal(outCopy, &output); err != nil {
		return deadlog.ClassifyResult{}, fmt.Errorf("failed to unmarshal output: %w", err)
	}

	if !output.Ok {
		errMsg := "unknown error"
		if output.Error != nil {
			errMsg = *output.Error
		}
		code := ""
		if output.Code != nil {
			code = *output.Code
		}
		return deadlog.ClassifyResult{}, &PluginError{Code: code, Message: errMsg}
	}

	if len(output.Events) == 0 {
		return deadlog.ClassifyResult{Matched: false}, nil
	}
	return deadlog.ClassifyResult{
		Matched: true,
		Events:  output.Events,
	}, nil
}

// Close releases all plugin resources. Implements io.Closer and is safe to
// call more than once.
func (c *WasmClassifier) Close() error {
	if c.compiled == nil {
		return nil
	}
	err := c.compiled.Close(context.Background())
	c.compiled = nil
	return err
}

// SetTimeout replaces the classify_line execution timeout. Safe for
// concurrent use.
func (c *WasmClassifier) SetTimeout(timeout time.Duration) {
	c.timeout.Store(int64(timeout))
}

var _ deadlog.Classifier = (*WasmClassifier)(nil)
