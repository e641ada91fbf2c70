package access

import (
	"context"
	"os"
	"os/user"
)

// ModeSource synthesises ACL entries from POSIX owner and permission bits
type ModeSource struct{}

func (s *ModeSource) Entries(ctx context.Context, path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	uid, ok := ownerOf(info)
	if !ok {
		return nil, nil
	}

	owner := uid
	if u, err := user.LookupId(uid); err == nil {
		owner = u.Username
	}

	rights := "Read"
	if info.Mode().Perm()&0200 != 0 {
		rights = "Write"
	}
	return []Entry{{Principal: owner, Type: "Allow", Rights: rights}}, nil
}
