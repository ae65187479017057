// Package locator finds Earth Volumetric Studio: the executable to launch and
// the instances already running.
//
// Executable resolution tries, in order, an explicit path, the installation
// registry on Windows (HKLM\SOFTWARE\C Tech Development Corporation), and
// the PATH. The resolved file is always checked through an afero.Fs so tests
// can supply an in-memory filesystem.
//
// Process lookups read the live process table through gopsutil on every call.
// Nothing is cached, and a Locator is safe for concurrent use.
package locator
