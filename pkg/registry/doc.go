// Package registry implements the global registry: a chain of config cells
// that partitions the hash space into half-open ranges.  Each config cell
// stores the configuration whose hash starts its range, if any, and the hash
// where the next cell's range starts.
//
// A config cell's range start lives in its lock args; the range end leads its
// data:
//
//	lock args: [flag(1)] | registry id(32) | current hash(32)
//	data:      next hash(32) | configuration record
//
// The Guard type script keeps the partition gapless and non-overlapping
// across inserts and updates, Resolve looks configurations up through a
// transaction's cell deps, and AuthorizeRole tells a lock what it must check
// when its transaction rewrites registry cells.
package registry
