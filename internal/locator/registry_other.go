//go:build !windows

package locator

// systemInstallations reports no registered installations; outside Windows
// EVS is found on PATH or through an explicit path.
func systemInstallations() ([]Installation, error) {
	return nil, nil
}
