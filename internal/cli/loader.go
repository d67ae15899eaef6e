package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/varsys/internal/compiler"
	"github.com/roach88/varsys/internal/ir"
)

// LoadResult contains a compiled graph and where it came from.
type LoadResult struct {
	Spec      *ir.GraphSpec
	Hash      string // graph content hash
	FileCount int    // Number of CUE files compiled
}

// LoadError represents an error that occurred during graph loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph compiles the graph at path. A file is compiled on its own; a
// directory is loaded as one CUE package, so its files must share a
// package clause. All errors are *LoadError.
func LoadGraph(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph: %v", err)}
	}

	var (
		spec  *ir.GraphSpec
		files int
	)
	if info.IsDir() {
		spec, files, err = loadDir(path)
	} else {
		spec, err = loadFile(path)
		files = 1
	}
	if err != nil {
		return nil, err
	}

	hash, err := ir.GraphHash(spec)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("hashing graph: %v", err)}
	}
	return &LoadResult{Spec: spec, Hash: hash, FileCount: files}, nil
}

func loadFile(path string) (*ir.GraphSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading graph: %v", err)}
	}
	spec, err := compiler.CompileSource(path, src)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return spec, nil
}

func loadDir(dir string) (*ir.GraphSpec, int, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, 0, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, 0, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, 0, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, 0, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, 0, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	spec, err := compiler.CompileGraph(value)
	if err != nil {
		return nil, 0, convertCompileError(err)
	}
	return spec, len(cueFiles), nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Semantic validation codes (E2xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database error
	ErrCodeUnknownRun  = "E009" // Run not found

	// Structural errors
	ErrCodeVariables = "E101" // Malformed variable declaration
	ErrCodeChannels  = "E102" // Malformed channel declaration
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.HasPrefix(field, "variables"):
		return ErrCodeVariables
	case strings.HasPrefix(field, "channels"):
		return ErrCodeChannels
	default:
		return ErrCodeGeneric
	}
}

// loadErrorCode returns the code of a LoadError, ErrCodeGeneric otherwise.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
