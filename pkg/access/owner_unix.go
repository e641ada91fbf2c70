//go:build !windows

package access

import (
	"io/fs"
	"strconv"
	"syscall"
)

func ownerOf(info fs.FileInfo) (string, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", false
	}
	return strconv.FormatUint(uint64(stat.Uid), 10), true
}
