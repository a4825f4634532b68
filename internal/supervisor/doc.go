// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package supervisor runs the long-lived parts of Resonance under suture v4.

# Tree

	resonance
	├── data-layer
	│   └── RecommendService   scheduled, startup and triggered batch runs
	├── messaging-layer
	│   └── RouterService      extraction pipeline and approval consumer
	└── api-layer
	    └── HTTPServerService  REST API, health, metrics

Each layer counts failures on its own. A router that cannot reach NATS backs
off inside messaging-layer while the API keeps answering from storage.

The embedded NATS server, the storage backend and the event bus are opened
in cmd/server before the tree starts and closed after it stops. They are
dependencies of supervised services, not services themselves.

# Restart Policy

TreeConfig maps onto suture.Spec. Failures decay with a half-life of
FailureDecay seconds; once the count passes FailureThreshold the supervisor
waits FailureBackoff before the next restart. ShutdownTimeout bounds how
long each service may take to return after its context is canceled.
Services that overrun it show up in UnstoppedServiceReport.

# Logging

Supervisor events go through sutureslog into the slog logger passed to
NewSupervisorTree. cmd/server passes logging.NewSlogLogger("supervisor"),
which forwards to zerolog.

# Service Contract

	Serve(ctx) returns ctx.Err()  shutdown requested
	Serve(ctx) returns an error   crashed, restart with backoff
	Serve(ctx) returns nil        finished, do not restart
*/
package supervisor
