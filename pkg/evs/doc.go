// Package evs automates Earth Volumetric Studio from Go.
//
// A [Session] is a connection to one EVS process. Obtain one by launching a
// new process with [StartNew] or by attaching to a running one with
// [ConnectExisting]. The scoped helpers [WithNew] and [WithExisting] release
// the session on every exit path, including panics:
//
//	err := evs.WithNew(ctx, evs.Config{}, func(s *evs.Session) error {
//	    if err := s.LoadApplication(ctx, `C:\projects\demo.evs`); err != nil {
//	        return err
//	    }
//	    title, err := s.InstanceModule(ctx, "titles", "t1", 363, 679)
//	    if err != nil {
//	        return err
//	    }
//	    return s.SetModule(ctx, title, "Properties", "Title", "Hello")
//	})
//
// Session methods mirror EVS's in-process scripting API in name and argument
// order. Arguments are validated before anything is sent; invalid arguments
// return a *ValidationError. Failures reported by EVS return a *RemoteError
// carrying EVS's message, classified by the sentinel errors in this package.
//
// One call runs at a time per Session. Separate Sessions may be used from
// separate goroutines.
package evs
