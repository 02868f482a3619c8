// Package app wires configuration, observability, the pipeline and the HTTP surface
// into one Application.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, BANKCAP_* environment)
//	2. Initialize the JSON logger and OpenTelemetry providers
//	3. Open the handoff store, progress log and table sink
//	4. Register the crawl, extract, transform, load and query stages
//	5. Build the scheduler, run service and health service
//	6. Set up the chi router and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(configPath)
//	if err != nil {
//	    return err
//	}
//	defer application.Close(context.Background())
//
//	record, err := application.Run(ctx)   // one run
//	err = application.Serve(ctx)          // HTTP API and interval trigger
//
// Serve returns once ctx is cancelled and the server has drained within
// server.shutdown_timeout. Close then cancels in-flight runs and releases
// the stores.
package app
