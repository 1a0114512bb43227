//go:build windows

package device

import "golang.org/x/sys/windows"

// statFS returns free and total bytes for the filesystem containing path.
func statFS(path string) (free, total uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	var avail, totalBytes, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &totalBytes, &totalFree); err != nil {
		return 0, 0, err
	}
	return avail, totalBytes, nil
}
