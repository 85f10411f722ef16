// Package combinelock implements the composite lock: a lock script that
// delegates authorization to a group of child scripts which must all succeed.
//
// The lock is bound to a ChildScriptConfig by hash.  The configuration is
// either supplied in the unlocking witness, or stored in a config cell of a
// global registry and found through the transaction's cell deps.  The witness
// selects one child group of the configuration and carries one inner witness
// per child script.
//
// Two program images run the lock.  Dispatcher spawns every selected child in
// turn and fails with ErrUnlockFailed on the first non-zero exit.  Chained
// performs the same checks, then hands control to the first child with the
// whole list of child entries; every child execs the next entry once it
// succeeds.
package combinelock
