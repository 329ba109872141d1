// Package marssensor exposes a field sensor to command-and-control (C2)
// systems over the MRS reporting protocol. The module implements the
// device side of the protocol: C2 parties register with a configuration
// request, subscribe to status or indication traffic, and from then on
// receive heartbeats, periodic full status reports and batched detection
// reports until they unsubscribe or go idle.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Application               │  sensor driver feeding
//	│  (RegisterIndications, SetStatus)   │  detections and health
//	└──────────────────┬──────────────────┘
//	                   ↓
//	┌─────────────────────────────────────┐
//	│             adapter                 │  dispatcher, scheduler,
//	│  (sessions, enrichment, delivery)   │  delivery gateway
//	└──────────────────┬──────────────────┘
//	                   ↓
//	┌─────────────────────────────────────┐
//	│            transports               │  websocket, NATS,
//	│   (wsserver, natsrpc, tcpserver)    │  length-prefixed TCP
//	└─────────────────────────────────────┘
//
// # Packages
//
// Protocol:
//   - mrs: message types, codec and validator contracts
//   - mrs/mrsjson: JSON envelope codec
//   - mrs/schema: JSON Schema validation per message kind
//
// Core:
//   - adapter: message dispatch, scheduling and delivery
//   - session: party registry with idle eviction
//   - indication: detection enrichment and grouping
//   - geo: great-circle bearing math in mils
//
// Infrastructure:
//   - transport: wire binding contracts and implementations
//   - config: daemon configuration loading and validation
//   - metric: Prometheus metrics registry
//   - errors: classified error handling
//
// # Binary
//
// cmd/mars-sensor runs the daemon: it loads the device documents named in
// the configuration file, starts the adapter and serves the enabled
// transports until interrupted.
//
//	./bin/mars-sensor --config configs/mars-sensor.json
package marssensor
