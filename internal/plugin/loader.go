package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/deadlog/deadlog-go/internal/safefile"
)

const (
	// MaxWasmFileSize is the maximum size of a plugin file (10MB).
	MaxWasmFileSize = 10 * 1024 * 1024

	// ExpectedABIVersion is the plugin ABI version this host supports.
	ExpectedABIVersion = 1

	// InputRegion is the fixed memory offset where the host writes input.
	// 64KB keeps it clear of TinyGo's default heap placement.
	InputRegion = 0x10000

	// InputRegionSize is the capacity of the input region (8KB).
	InputRegionSize = 8192
)

// compiledWasm holds a compiled module and the runtime that owns it.
type compiledWasm struct {
	runtime       wazero.Runtime
	compiled      wazero.CompiledModule
	cache         wazero.CompilationCache
	hostFunctions *hostFunctions
}

// Close releases held resources in reverse order of creation. Safe to call
// more than once.
func (c *compiledWasm) Close(ctx context.Context) error {
	var firstErr error

	if c.cache != nil {
		if err := c.cache.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.cache = nil
	}
	if c.compiled != nil {
		if err := c.compiled.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.compiled = nil
	}
	if c.runtime != nil {
		if err := c.runtime.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.runtime = nil
	}
	return firstErr
}

// loadWasm reads, compiles, and ABI-checks a plugin file, wiring up the
// host function module along the way.
func loadWasm(ctx context.Context, path string, logger *slog.Logger) (*compiledWasm, error) {
	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		if errors.Is(err, safefile.ErrNotRegularFile) {
			return nil, fmt.Errorf("wasm path is not a regular file: %w", err)
		}
		return nil, fmt.Errorf("failed to open wasm file: %w", err)
	}
	defer f.Close()

	if info.Size() > MaxWasmFileSize {
		return nil, ErrFileTooLarge
	}

	// Re-check the size after reading in case the file grew since stat.
	wasmBytes, err := io.ReadAll(io.LimitReader(f, MaxWasmFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm file: %w", err)
	}
	if int64(len(wasmBytes)) > MaxWasmFileSize {
		return nil, ErrFileTooLarge
	}

	rtConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)

	cacheDir, err := compilationCacheDir()
	var cache wazero.CompilationCache
	if err == nil {
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err == nil {
			rtConfig = rtConfig.WithCompilationCache(cache)
			if logger != nil {
				logger.Debug("using wasm compilation cache", "dir", cacheDir)
			}
		} else if logger != nil {
			logger.Warn("failed to create compilation cache, continuing without cache", "error", err)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	cleanup := func() {
		cleanupCtx := context.Background()
		rt.Close(cleanupCtx)
		if cache != nil {
			cache.Close(cleanupCtx)
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cleanup()
		return nil, &RuntimeError{Operation: "wasi instantiation", Err: err}
	}

	hf := newHostFunctions(logger)

	envBuilder := rt.NewHostModuleBuilder("env")

	envBuilder = envBuilder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen uint32) uint32 {
			return hf.regexMatch(ctx, m, strPtr, strLen, rePtr, reLen)
		}).
		Export("regex_match")

	envBuilder = envBuilder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen, outBufPtr, outBufLen uint32) uint32 {
			return hf.regexFindSubmatch(ctx, m, strPtr, strLen, rePtr, reLen, outBufPtr, outBufLen)
		}).
		Export("regex_find_submatch")

	envBuilder = envBuilder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
			hf.log(ctx, m, level, ptr, msgLen)
		}).
		Export("log")

	envBuilder = envBuilder.NewFunctionBuilder().
		WithFunc(func() int64 {
			return hf.nowMs()
		}).
		Export("now_ms")

	if _, err := envBuilder.Instantiate(ctx); err != nil {
		cleanup()
		return nil, &RuntimeError{Operation: "host functions registration", Err: err}
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		cleanup()
		return nil, &RuntimeError{Operation: "wasm compilation", Err: err}
	}

	if err := validateExports(compiled); err != nil {
		compiled.Close(context.Background())
		cleanup()
		return nil, err
	}

	return &compiledWasm{
		runtime:       rt,
		compiled:      compiled,
		cache:         cache,
		hostFunctions: hf,
	}, nil
}

// validateExports checks that the module exports the required functions.
// The actual ABI version is verified later by calling abi_version.
func validateExports(compiled wazero.CompiledModule) error {
	required := []string{"abi_version", "alloc", "free", "classify_line"}

	exports := compiled.ExportedFunctions()
	for _, name := range required {
		if _, ok := exports[name]; !ok {
			return &ABIError{
				Function: name,
				Reason:   "missing required export",
			}
		}
	}
	return nil
}

// compilationCacheDir returns the wazero compilation cache directory,
// following the XDG base directory convention.
func compilationCacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheHome, "deadlog", "wasm")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
