// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Command server runs the Resonance recommendation service.

# Startup Order

 1. Configuration: Koanf v2 (defaults, then config.yaml, then environment)
 2. Logging: zerolog, JSON or console
 3. Storage: memory, badger, sqlite or postgres, optionally behind Redis
 4. Engine: recommend.Engine with the Prometheus observer installed
 5. Messaging: embedded NATS (optional), JetStream stream, watermill bus,
    extraction pipeline when enabled
 6. Supervisor tree: recommend service, event router, HTTP server

Storage and the bus are opened before the tree starts and closed after it
stops. The memory backend writes its snapshot on close.

# Signals

SIGINT and SIGTERM cancel the root context. Each supervised service gets
its own shutdown timeout; anything that overruns is logged from
UnstoppedServiceReport.

# Hot Reload

When a config file is in use it is watched. On change the file is reloaded
and the log level and format are reapplied. Every other setting needs a
restart.

# Example

	export STORAGE_BACKEND=sqlite
	export SQLITE_DSN=file:/data/resonance.db
	export EVENTS_BACKEND=nats
	export NATS_EMBEDDED=true
	export EXTRACTION_ENABLED=true
	export EXTRACTOR_URL=http://extractor:9000/extract
	./server
*/
package main
