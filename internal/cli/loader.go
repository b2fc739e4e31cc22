package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// LoadError represents an error that occurred while loading a command list.
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

// commandFile is the YAML and CUE shape of a command list.
type commandFile struct {
	Commands []string `yaml:"commands" json:"commands"`
}

// LoadCommands reads a command list in program order. The format follows
// the file extension:
//   - .yaml, .yml: a document with a commands list
//   - .cue: a commands: [...string] field
//   - anything else: one command per line, blank lines and # comments skipped
func LoadCommands(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("command list not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading command list: %v", err)}
	}

	var commands []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		commands, err = decodeYAMLCommands(data)
	case ".cue":
		commands, err = decodeCUECommands(path, data)
	default:
		commands, err = decodeTextCommands(data)
	}
	if err != nil {
		return nil, err
	}

	if len(commands) == 0 {
		return nil, &LoadError{Code: ErrCodeNoCommands, Message: fmt.Sprintf("no commands found in %s", path)}
	}
	return commands, nil
}

func decodeTextCommands(data []byte) ([]string, error) {
	var commands []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading command list: %v", err)}
	}
	return commands, nil
}

func decodeYAMLCommands(data []byte) ([]string, error) {
	var f commandFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("decoding YAML: %v", err)}
	}
	return f.Commands, nil
}

func decodeCUECommands(path string, data []byte) ([]string, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(err)
	}

	field := value.LookupPath(cue.ParsePath("commands"))
	if !field.Exists() {
		return nil, nil
	}
	var commands []string
	if err := field.Decode(&commands); err != nil {
		return nil, cueLoadError(err)
	}
	return commands, nil
}

// cueLoadError converts a CUE error to a LoadError carrying its first position.
func cueLoadError(err error) *LoadError {
	le := &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("evaluating CUE: %v", err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeNoCommands  = "E003" // Empty command list
	ErrCodeParseFailed = "E004" // YAML/CUE decode failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeStoreFailed = "E006" // Database error

	// Ingestion errors
	ErrCodeMalformedCommand = "E101" // Command cannot be normalized
	ErrCodeDuplicateCommand = "E102" // Two commands share an identity

	// Run errors
	ErrCodeTraceUnavailable = "E201" // Trace missing or without events
	ErrCodeExecutorFailure  = "E202" // A command's last execution failed
	ErrCodeRoundLimit       = "E203" // Round limit exceeded
	ErrCodeExecutionError   = "E204" // Batch could not be executed
	ErrCodeTraceFormat      = "E205" // Unknown trace format

	// Report errors
	ErrCodeRunNotFound = "E301" // Unknown run ID
)
