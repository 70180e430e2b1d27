package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/choreo/internal/compiler"
	"github.com/roach88/choreo/internal/ir"
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Field   string    // compiler field path, if known
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands. Definition
// validation codes (E201-E209) come from the compiler package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNoDefs       = "E003" // No definitions found
	ErrCodeLoadFailed   = "E004" // CUE or YAML load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeCompileError = "E101" // Definition shape or type error
)

// LoadDefinitions loads and compiles choreography definitions from a CUE
// directory, a .cue file or a YAML/JSON file.
func LoadDefinitions(path string) ([]ir.Definition, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions path not found: %s", path)}
	}

	defs, err := compiler.LoadPath(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(defs) == 0 {
		return nil, &LoadError{Code: ErrCodeNoDefs, Message: fmt.Sprintf("no choreography definitions found in %s", path)}
	}
	return defs, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileError,
			Message: compileErr.Message,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}
