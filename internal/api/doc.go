// Package api implements the HTTP surface of relayd and registryd.
//
// One Server type backs both binaries. Which routes it mounts depends on the
// dependencies it is built with:
//
//	relayd:    GET /, GET /control
//	registryd: GET /, POST /register, GET /verify, GET /status, POST /reset
//
// Domain errors from the control and registration packages are mapped to
// HTTP status codes here and nowhere else. A failed request never stops the
// process; handler panics are recovered and answered with 500.
//
// Every response carries an X-Request-ID header. CORS headers are sent for
// the configured origins, or for every origin when none are configured.
//
// Lifecycle:
//
//	srv, err := api.New(deps)
//	if err := srv.Start(ctx); err != nil { ... } // bind errors surface here
//	defer srv.Close()
package api
