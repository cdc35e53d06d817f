// Package governance wires inventory, risk scoring, duplicate detection,
// cleanup planning and the move-only executor into the scan, plan, apply and
// run commands.
//
// Service drives one run and writes its artifacts beneath the state root.
// NewPipeline assembles a Service from Configuration.
package governance
