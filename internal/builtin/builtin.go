// Package builtin registers the script programs shipped with combinelock.
package builtin

import (
	"github.com/ArkLabsHQ/combinelock/pkg/auth"
	"github.com/ArkLabsHQ/combinelock/pkg/childscript"
	"github.com/ArkLabsHQ/combinelock/pkg/combinelock"
	"github.com/ArkLabsHQ/combinelock/pkg/lockwrapper"
	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

// Names of the built-in images.  Cells reference an image's code by the
// hash of vm.NewImage(name, ...).Data.
const (
	CombineLock        = "combine-lock"
	CombineLockChained = "combine-lock-chained"
	RegistryGuard      = "registry-guard"
	LockWrapper        = "lock-wrapper"
	AuthVerifier       = "auth-verifier"
	AuthScript         = "auth-script"
	AlwaysSuccess      = "always-success"
	ExitWithArgs       = "exit-with-args"
	Preimage           = "preimage"
)

// Images returns a fresh image of every built-in program.
func Images() []*vm.Image {
	return []*vm.Image{
		vm.NewImage(CombineLock, combinelock.Dispatcher{}),
		vm.NewImage(CombineLockChained, combinelock.Chained{}),
		vm.NewImage(RegistryGuard, registry.Guard{}),
		vm.NewImage(LockWrapper, lockwrapper.Wrapper{}),
		vm.NewImage(AuthVerifier, auth.Verifier{}),
		vm.NewImage(AuthScript, auth.Script{}),
		vm.NewImage(AlwaysSuccess, childscript.AlwaysSuccess),
		vm.NewImage(ExitWithArgs, childscript.ExitWithArgs),
		vm.NewImage(Preimage, childscript.Preimage),
	}
}

// Programs returns a registry holding every built-in program.
func Programs() *vm.ProgramRegistry {
	r := vm.NewProgramRegistry()
	r.MustRegister(Images()...)
	return r
}
