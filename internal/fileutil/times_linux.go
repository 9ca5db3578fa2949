//go:build linux

package fileutil

import (
	"os"
	"syscall"
	"time"
)

// createdTime uses the inode change time; statx birth times are not
// exposed through os.FileInfo.
func createdTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
}
