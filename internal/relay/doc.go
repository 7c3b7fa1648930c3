// Package relay runs the single-writer pipeline that moves price updates from
// the bus to the snapshot store and the broadcast hub.
//
// Each message is handled to completion before the next is read:
//
//	Next -> decode -> persist -> broadcast
//
// A malformed message is dropped. A store failure is logged and, by default,
// the record is still broadcast. Losing the subscription ends Run with a
// *TransportError.
package relay
