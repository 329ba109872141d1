// Package mrs defines the data model of the reporting protocol: message
// kinds, the envelope contract, device/sensor identification, status and
// indication report structures, and the canonical detection record produced
// by the per-sensor-family translators.
//
// The adapter core treats configuration and status aggregates as values to
// copy, redact, and forward; it never interprets their internals beyond
// locating sensor identity and device-hub nesting. Opaque sub-records
// (per-sensor detail, media payloads) are carried as raw JSON.
//
// Wire serialization lives in mrs/mrsjson; structural validation lives in
// mrs/schema. Both are consumed by the core through the Codec and Validator
// interfaces defined here.
package mrs
