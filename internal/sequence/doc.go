// Package sequence hands out unique numbers for named sequences shared by
// many processes, touching the durable store only once per leased segment.
//
// # Segment Leasing
//
// Each process leases a contiguous range [min, max) of a sequence by moving
// the durable row's high-water mark forward inside a row-locking
// transaction. Values inside the lease are handed out locally with a
// compare-and-swap loop. When the lease runs out, the next caller refills it
// from the store; callers arriving meanwhile wait for that refill instead of
// starting their own.
//
// Leases held by different processes never overlap. Values are unique per
// name (until a looping sequence wraps) but carry no order across
// processes, and the unused tail of a lease is lost when its process exits
// or evicts the segment.
//
// # Modes
//
//   - Fixed: the durable row must exist; an unknown name is an error.
//   - Dynamic: an unknown name is created from the request's parameters.
//     The first row persisted wins; later requests with other parameters
//     use it unchanged.
//
// Fixed and dynamic names live in separate namespaces.
//
// # Cache
//
// Segments are cached per name. When the cache reaches its maximum size,
// the least recently used segments are dropped until the survivor size
// remains. A dropped name is simply re-created on its next request.
package sequence
