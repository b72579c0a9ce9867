//go:build !linux

package dispatch

func lowerThreadPriority(int) error {
	return nil
}
