//go:build unix

package fileutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SameVolume reports whether both paths live on the same filesystem
// device. Rename-based promotion is only atomic within one volume.
func SameVolume(a, b string) (bool, error) {
	var statA, statB unix.Stat_t
	if err := unix.Stat(a, &statA); err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	if err := unix.Stat(b, &statB); err != nil {
		return false, fmt.Errorf("stat %s: %w", b, err)
	}
	return statA.Dev == statB.Dev, nil
}
