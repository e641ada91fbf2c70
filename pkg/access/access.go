package access

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/sdk-installer/pkg/pipeline"
	"github.com/flanksource/sdk-installer/pkg/platform"
	"github.com/flanksource/sdk-installer/pkg/types"
	"github.com/samber/lo"
)

// Entry is a single access-control entry on a path
type Entry struct {
	// Principal is the identity the entry applies to, e.g. DOMAIN\alice
	Principal string `json:"IdentityReference"`
	// Type is Allow or Deny
	Type string `json:"AccessControlType"`
	// Rights is the comma-separated rights list, e.g. "Modify, Synchronize"
	Rights string `json:"FileSystemRights"`
}

// Source lists the access-control entries of a path
type Source interface {
	Entries(ctx context.Context, path string) ([]Entry, error)
}

// writeRights grant the ability to create files in a directory. Modify is a
// superset of Write.
var writeRights = []string{"write", "modify", "fullcontrol"}

// Generic rights sometimes reported numerically for inherited entries
const (
	genericAll   = "268435456"
	genericWrite = "1073741824"
)

// Checker decides whether a principal can write to a directory without elevation
type Checker struct {
	Source Source
	// LocalDomains are the domains an unqualified account name may belong to,
	// usually the machine name and the invoking user's domain
	LocalDomains []string
}

// NewChecker returns a checker reading ACLs the native way for plat
func NewChecker(plat platform.Platform, localDomains ...string) *Checker {
	if plat.IsWindows() {
		return &Checker{Source: &PowershellSource{}, LocalDomains: localDomains}
	}
	return &Checker{Source: &ModeSource{}, LocalDomains: localDomains}
}

// CanWrite inspects the ACL of path. A principal without a matching entry is
// reported as not writable, which is not an error. Failing to read the ACL
// yields a PermissionProbeError and a non-writable grant.
func (c *Checker) CanWrite(ctx context.Context, principal, path string, t *task.Task) (types.AccessGrant, error) {
	grant := types.AccessGrant{Principal: principal, Path: path}

	if _, err := os.Stat(path); err != nil {
		return grant, pipeline.NewError(pipeline.KindPermissionProbe, types.StageAccess, path, err)
	}

	entries, err := c.Source.Entries(ctx, path)
	if err != nil {
		return grant, pipeline.NewError(pipeline.KindPermissionProbe, types.StageAccess, path,
			fmt.Errorf("failed to read access control list: %w", err))
	}

	grant.Probed = true
	grant.Writable = HasWriteGrant(entries, principal, c.LocalDomains...)

	if t != nil {
		t.V(3).Infof("%d ACL entries on %s, %s writable=%v", len(entries), path, principal, grant.Writable)
	}
	return grant, nil
}

// HasWriteGrant reports whether entries hold an Allow entry with write or
// full-control rights for principal. A matching Deny entry for the same
// rights takes precedence.
func HasWriteGrant(entries []Entry, principal string, localDomains ...string) bool {
	matching := lo.Filter(entries, func(e Entry, _ int) bool {
		return MatchesPrincipal(e.Principal, principal, localDomains...) && grantsWrite(e.Rights)
	})

	denied := lo.SomeBy(matching, func(e Entry) bool {
		return strings.EqualFold(strings.TrimSpace(e.Type), "Deny")
	})
	allowed := lo.SomeBy(matching, func(e Entry) bool {
		return strings.EqualFold(strings.TrimSpace(e.Type), "Allow")
	})
	return allowed && !denied
}

// MatchesPrincipal compares identities case-insensitively. An unqualified
// account name only matches a qualified one whose domain is in localDomains.
func MatchesPrincipal(entryPrincipal, principal string, localDomains ...string) bool {
	a := strings.ToLower(strings.TrimSpace(entryPrincipal))
	b := strings.ToLower(strings.TrimSpace(principal))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	aDomain, aUser := splitPrincipal(a)
	bDomain, bUser := splitPrincipal(b)
	if aUser != bUser || (aDomain != "" && bDomain != "") {
		return false
	}
	domain := aDomain + bDomain
	if domain == "" {
		return true
	}
	return lo.ContainsBy(localDomains, func(d string) bool {
		return strings.EqualFold(strings.TrimSpace(d), domain)
	})
}

func splitPrincipal(p string) (domain, user string) {
	if i := strings.LastIndex(p, `\`); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

func grantsWrite(rights string) bool {
	for _, r := range strings.Split(rights, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if lo.Contains(writeRights, r) || r == genericAll || r == genericWrite {
			return true
		}
	}
	return false
}
