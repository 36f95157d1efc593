package pattern

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/deadlog/deadlog-go/internal/safefile"
)

const (
	// MaxPatternFileSize is the maximum allowed size for a pattern file (1MB).
	MaxPatternFileSize = 1 * 1024 * 1024 // 1 MB

	// MaxPatternLength is the maximum allowed length for a regex pattern
	// (512 bytes). Long patterns are a ReDoS hazard.
	MaxPatternLength = 512

	// MaxPatternCount is the maximum number of patterns allowed in a pattern
	// file. Every line of every scan is checked against every pattern.
	MaxPatternCount = 1000

	// SupportedVersion is the currently supported pattern file format version.
	SupportedVersion = 1
)

// Load reads and parses a pattern file from the given path.
// Returns an error if the file cannot be read, is too large, or fails
// validation. Non-regular files (FIFO, device, socket) are rejected.
//
// Example:
//
//	pf, err := pattern.Load("patterns.yaml")
//	if err != nil {
//	    log.Fatalf("failed to load pattern file: %v", err)
//	}
func Load(path string) (*PatternFile, error) {
	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer f.Close()

	if info.Size() == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if info.Size() > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", info.Size(), MaxPatternFileSize)
	}

	// Read MaxPatternFileSize+1 to detect a file growing past the limit
	// between the Stat and the Read.
	data, err := io.ReadAll(io.LimitReader(f, MaxPatternFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	if len(data) > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", len(data), MaxPatternFileSize)
	}

	return LoadBytes(data)
}

// LoadBytes parses a pattern file from a byte slice.
// Returns an error if the data cannot be parsed or fails validation.
func LoadBytes(data []byte) (*PatternFile, error) {
	if len(data) == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if len(data) > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", len(data), MaxPatternFileSize)
	}

	var pf PatternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := pf.Validate(); err != nil {
		return nil, err
	}

	return &pf, nil
}

// Validate performs schema-level validation on the pattern file: supported
// version, at least one pattern, required fields, unique IDs, and the
// per-pattern length limit.
//
// Validate does NOT compile regular expressions; compilation happens in
// NewRegexClassifier to avoid doing the work twice.
func (pf *PatternFile) Validate() error {
	if pf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", pf.Version, SupportedVersion),
		}
	}

	if len(pf.Patterns) == 0 {
		return &ValidationError{
			Field:   "patterns",
			Message: "at least one pattern is required",
		}
	}

	if len(pf.Patterns) > MaxPatternCount {
		return &ValidationError{
			Field:   "patterns",
			Message: fmt.Sprintf("too many patterns (%d), maximum allowed is %d", len(pf.Patterns), MaxPatternCount),
		}
	}

	seenIDs := make(map[string]int, len(pf.Patterns))

	for i, p := range pf.Patterns {
		if p.ID == "" {
			return &PatternError{
				Index:   i,
				Field:   "id",
				Message: "id is required",
			}
		}
		if p.EventType == "" {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "event_type",
				Message: "event_type is required",
			}
		}
		if p.Regex == "" {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: "regex is required",
			}
		}

		if prevIndex, exists := seenIDs[p.ID]; exists {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id (previously defined at pattern[%d])", prevIndex),
			}
		}
		seenIDs[p.ID] = i

		if len(p.Regex) > MaxPatternLength {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(p.Regex), MaxPatternLength),
			}
		}
	}

	return nil
}
