// Package shutdown coordinates process termination.
//
// Shutdown hooks close servers and storage in reverse registration order.
// Emergency hooks run once, before them, when the process is terminated by
// a signal or crashes; the session layer uses them to write emergency save
// points.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnEmergency(func(reason string) { scheduler.EmergencySave(reason) })
//	h.OnShutdown(func(ctx context.Context) error { return srv.Stop(ctx) })
//	defer func() {
//		if r := recover(); r != nil {
//			h.RunEmergency("panic")
//			panic(r)
//		}
//	}()
//	return h.Wait(ctx)
package shutdown
