// Package transport carries automation calls to a running Earth Volumetric
// Studio process.
//
// Each EVS process listens on one endpoint named after its PID: the named pipe
// \\.\pipe\EVS_<pid> on Windows, or a unix socket EVS_<pid> in the runtime
// directory elsewhere. A request is one JSON object followed by a newline:
//
//	{"method": "SetValue", "args": ["titles", "", "Properties", "Title", "Hello"]}
//
// and the reply is one JSON object:
//
//	{"Success": true, "Value": null, "Error": ""}
//
// [Conn] allows a single call in flight. A call whose context ends early
// still owns the connection until its reply has been read and discarded, so
// the next call never receives a stale reply.
package transport
