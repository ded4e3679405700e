// Package wharf is a local development-environment orchestrator for
// container-based web projects.
//
// # Overview
//
// wharf brings up a project's service containers (web, database, mail),
// wires them into a per-project private network and makes the web
// container reachable as http://<project>.<domain> through a shared
// reverse proxy. Two containers are host-global singletons shared by
// every project: the reverse proxy and the ssh-agent proxy.
//
// # Architecture
//
//	┌──────────────────┐
//	│  CLI (cobra)     │  prefix-matched commands, shell by default
//	└────────┬─────────┘
//	         │
//	┌────────▼─────────┐      ┌──────────────────┐
//	│  Lifecycle       │─────►│ Singleton        │
//	│  Controller      │      │ Services         │
//	└────┬──────┬──────┘      └──────────────────┘
//	     │      │
//	┌────▼───┐ ┌▼─────────────┐
//	│ Docker │ │ Process      │
//	│ Probes │ │ Runner       │
//	└────────┘ └──────────────┘
//
// The orchestrator holds no state of its own: every invocation probes
// the container runtime for the current world state and reconciles
// only the delta, so commands are idempotent and concurrent
// invocations converge.
package wharf
