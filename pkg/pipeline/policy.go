package pipeline

import (
	"fmt"
	"strings"
)

// Action is what the pipeline does when a stage reports an error of a given kind.
type Action string

const (
	Abort    Action = "abort"
	Continue Action = "continue"
)

// ParseAction parses "abort" or "continue" (case-insensitive).
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Abort:
		return Abort, nil
	case Continue:
		return Continue, nil
	default:
		return "", fmt.Errorf("invalid policy action %q (expected abort or continue)", s)
	}
}

// Policy maps each error kind to an action. Kinds absent from the map abort.
type Policy map[ErrorKind]Action

// DefaultPolicy aborts on anything that leaves no usable artifact and continues
// past installer-process and activation failures. A failed permission probe
// falls back to requesting elevation.
func DefaultPolicy() Policy {
	return Policy{
		KindResolution:              Abort,
		KindMalformedVersion:        Abort,
		KindUnsupportedFormat:       Abort,
		KindDownload:                Abort,
		KindExtraction:              Abort,
		KindInstallerProcess:        Continue,
		KindActivationScriptMissing: Continue,
		KindPermissionProbe:         Continue,
	}
}

// StrictPolicy aborts on every kind.
func StrictPolicy() Policy {
	p := Policy{}
	for _, kind := range AllKinds() {
		p[kind] = Abort
	}
	return p
}

// ActionFor returns the action for kind.
func (p Policy) ActionFor(kind ErrorKind) Action {
	if a, ok := p[kind]; ok {
		return a
	}
	return Abort
}

// ShouldAbort reports whether err must stop the pipeline. Unclassified errors always abort.
func (p Policy) ShouldAbort(err error) bool {
	if err == nil {
		return false
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		return true
	}
	return p.ActionFor(kind) == Abort
}

// With returns a copy of the policy with overrides applied. Keys are kind
// names as accepted by ParseKind.
func (p Policy) With(overrides map[string]string) (Policy, error) {
	out := Policy{}
	for k, v := range p {
		out[k] = v
	}
	for key, value := range overrides {
		kind, err := ParseKind(key)
		if err != nil {
			return nil, err
		}
		action, err := ParseAction(value)
		if err != nil {
			return nil, fmt.Errorf("policy for %s: %w", key, err)
		}
		out[kind] = action
	}
	return out, nil
}
