package generate

import (
	"errors"
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes.
const (
	CodeTemplate      = "FTG001"
	CodeParse         = "FTG002"
	CodeGeneration    = "FTG003"
	CodeUnimplemented = "FTG004"
)

// Stages a feature file passes through; a FileError names the one that
// failed.
const (
	StageRead    = "read"
	StageParse   = "parse"
	StageConvert = "convert"
	StageRender  = "render"
	StageFormat  = "format"
	StageWrite   = "write"
)

type Diagnostic struct {
	Code     string
	Severity Severity
	File     string
	Message  string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s %s: %s", d.Code, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", d.Code, d.Severity, d.File, d.Message)
}

// TemplateError means no single template could be chosen. Nothing is
// generated when it occurs.
type TemplateError struct {
	Path  string
	Found []string
	Err   error
}

// ErrNoTemplate means neither a template file nor a template directory
// was configured.
var ErrNoTemplate = errors.New("no template configured: set template or template_dir, or run `ftgen init`")

func (e *TemplateError) Error() string {
	switch {
	case e.Path == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("template %s: %v", e.Path, e.Err)
	case len(e.Found) == 0:
		return fmt.Sprintf("no .mustache template in %s", e.Path)
	default:
		return fmt.Sprintf("%d templates in %s, expected one: %s", len(e.Found), e.Path, strings.Join(e.Found, ", "))
	}
}

func (e *TemplateError) Unwrap() error { return e.Err }

// FileError is a failure confined to one feature file.
type FileError struct {
	Path  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Code maps the failed stage to a diagnostic code. A recovered panic is
// always a generation error.
func (e *FileError) Code() string {
	var pe *PanicError
	if e.Stage == StageParse && !errors.As(e.Err, &pe) {
		return CodeParse
	}
	return CodeGeneration
}

// PanicError carries a panic recovered while processing one file.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
