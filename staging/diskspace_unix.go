//go:build linux || darwin

package staging

import "golang.org/x/sys/unix"

// freeSpace reports the free bytes on the volume holding path.
func freeSpace(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return -1, err
	}

	return int64(st.Bavail) * int64(st.Bsize), nil
}
