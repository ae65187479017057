//go:build windows

package locator

import (
	"golang.org/x/sys/windows/registry"
)

const vendorKey = `SOFTWARE\C Tech Development Corporation`

// systemInstallations enumerates EVS installations from HKLM.
func systemInstallations() ([]Installation, error) {
	root, err := registry.OpenKey(registry.LOCAL_MACHINE, vendorKey, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		if err == registry.ErrNotExist {
			return nil, nil
		}
		return nil, err
	}
	defer root.Close()

	names, err := root.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}

	var installs []Installation
	for _, name := range names {
		version, ok := versionFromKey(name)
		if !ok {
			continue
		}
		path, err := readInstallPath(root, name)
		if err != nil {
			continue
		}
		installs = append(installs, Installation{Version: version, Path: path})
	}
	return installs, nil
}

func readInstallPath(root registry.Key, name string) (string, error) {
	k, err := registry.OpenKey(root, name, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	path, _, err := k.GetStringValue("Path")
	return path, err
}
