package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flanksource/sdk-installer/pkg/types"
)

// ErrorKind classifies installation failures. Each kind maps to its own exit code.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindResolution: the release-listing query failed or returned no tag
	KindResolution
	// KindMalformedVersion: the tag does not match v<major>.<minor>.<patch>[-suffix]
	KindMalformedVersion
	// KindUnsupportedFormat: the artifact URL is neither .zip nor .msi
	KindUnsupportedFormat
	// KindDownload: transport failure or non-2xx response on a GET
	KindDownload
	// KindExtraction: corrupt archive or unwritable extraction target
	KindExtraction
	// KindInstallerProcess: msiexec or a driver tool reported failure
	KindInstallerProcess
	// KindActivationScriptMissing: tools/<script> is absent from the installed package
	KindActivationScriptMissing
	// KindPermissionProbe: ACL inspection failed
	KindPermissionProbe
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                 "UnknownError",
	KindResolution:              "ResolutionError",
	KindMalformedVersion:        "MalformedVersionError",
	KindUnsupportedFormat:       "UnsupportedFormatError",
	KindDownload:                "DownloadError",
	KindExtraction:              "ExtractionError",
	KindInstallerProcess:        "InstallerProcessError",
	KindActivationScriptMissing: "ActivationScriptMissingError",
	KindPermissionProbe:         "PermissionProbeError",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ExitCode is the process exit code reported for the kind.
func (k ErrorKind) ExitCode() int {
	if k == KindUnknown {
		return 1
	}
	return 9 + int(k)
}

// ParseKind accepts either the error name (ResolutionError) or its snake_case
// config key (resolution).
func ParseKind(s string) (ErrorKind, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	normalized = strings.TrimSuffix(normalized, "error")
	for kind, name := range kindNames {
		if strings.TrimSuffix(strings.ToLower(name), "error") == normalized {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown error kind %q", s)
}

// AllKinds returns every known kind except KindUnknown.
func AllKinds() []ErrorKind {
	return []ErrorKind{
		KindResolution,
		KindMalformedVersion,
		KindUnsupportedFormat,
		KindDownload,
		KindExtraction,
		KindInstallerProcess,
		KindActivationScriptMissing,
		KindPermissionProbe,
	}
}

// Error is a classified failure with the stage and the path or URL involved.
type Error struct {
	Kind   ErrorKind
	Stage  types.Stage
	Target string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Stage != "" {
		b.WriteString(" [" + string(e.Stage) + "]")
	}
	if e.Target != "" {
		b.WriteString(" " + e.Target)
	}
	if e.Err != nil {
		b.WriteString(": " + cleanErrorMessage(e.Err))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindDownload}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

// NewError wraps err with a kind, stage and target.
func NewError(kind ErrorKind, stage types.Stage, target string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Target: target, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, stage types.Stage, target, format string, args ...any) *Error {
	return NewError(kind, stage, target, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// ExitCodeOf returns the process exit code for err, 0 for nil.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

// cleanErrorMessage removes redundant prefixes from wrapped error messages
func cleanErrorMessage(err error) string {
	errMsg := err.Error()

	redundantPrefixes := []string{
		"error: ",
		"pipeline failed: ",
	}

	for _, prefix := range redundantPrefixes {
		if strings.HasPrefix(strings.ToLower(errMsg), prefix) {
			errMsg = errMsg[len(prefix):]
			break
		}
	}

	return errMsg
}
