// Package process starts, observes and terminates Earth Volumetric Studio
// processes.
//
// Two implementations of [Process] exist:
//   - [ExecProcess]: a process this client launched. It owns the child and can
//     reap it, and on Windows it places the child in a job object so the whole
//     process tree can be terminated.
//   - [AttachedProcess]: a process that was already running, looked up by PID
//     through gopsutil. Liveness is polled from the OS process table.
//
// # Termination
//
// [Process.Terminate] asks politely first (SIGTERM to the process group on
// Unix; nothing on Windows, where EVS is expected to have been asked over the
// automation endpoint) and force-kills once the grace period has elapsed.
//
// # Thread Safety
//
// Both implementations are safe for concurrent use.
package process
