package access

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flanksource/sdk-installer/pkg/runtime"
)

// PowershellSource reads ACLs through Get-Acl
type PowershellSource struct {
	// Run executes a PowerShell command and returns its stdout; defaults to the detected runtime
	Run func(ctx context.Context, command string) (string, error)
}

// AclCommand returns the Get-Acl pipeline emitting entries as JSON
func AclCommand(path string) string {
	return fmt.Sprintf(`(Get-Acl -LiteralPath %s).Access | ForEach-Object { [pscustomobject]@{ IdentityReference = $_.IdentityReference.Value; AccessControlType = $_.AccessControlType.ToString(); FileSystemRights = $_.FileSystemRights.ToString() } } | ConvertTo-Json -Compress`,
		runtime.Quote(path))
}

func (s *PowershellSource) Entries(ctx context.Context, path string) ([]Entry, error) {
	run := s.Run
	if run == nil {
		run = runPowershell
	}
	out, err := run(ctx, AclCommand(path))
	if err != nil {
		return nil, err
	}
	return ParseEntries([]byte(out))
}

func runPowershell(ctx context.Context, command string) (string, error) {
	result, err := runtime.RunPowershellCommand(command, runtime.RunOptions{}, nil)
	if err != nil {
		return "", err
	}
	return result.GetStdout(), nil
}

// ParseEntries decodes ConvertTo-Json output, which is a single object when
// the ACL has one entry and an array otherwise.
func ParseEntries(data []byte) ([]Entry, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var e Entry
		if err := json.Unmarshal([]byte(trimmed), &e); err != nil {
			return nil, fmt.Errorf("failed to parse ACL entry: %w", err)
		}
		return []Entry{e}, nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse ACL entries: %w", err)
	}
	return entries, nil
}
