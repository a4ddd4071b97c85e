//go:build !windows

package preflight

// checkVolumeExists is a no-op on Unix; there are no drive letters to validate.
func checkVolumeExists(string) error {
	return nil
}

func isUnsafeRoot(path string) bool {
	return path == "/"
}
