// Package server manages the HTTP server lifecycle with graceful shutdown.
//
// It wraps [net/http.Server]: the server stops when the context passed to
// [Server.Run] is done or on SIGINT or SIGTERM, drains in-flight requests,
// and then runs registered cleanup functions.
//
//	srv := server.New(app,
//		server.WithHost(":3000"),
//		server.WithShutdownFunc(func(ctx context.Context) error {
//			return workspaces.Close()
//		}),
//	)
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
