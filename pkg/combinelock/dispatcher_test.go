package combinelock

import (
	"testing"

	"github.com/ArkLabsHQ/combinelock/pkg/childentry"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/ArkLabsHQ/combinelock/pkg/vm/vmtest"
	"github.com/stretchr/testify/require"
	hex "github.com/tmthrgd/go-hex"
)

// lockFixture builds transactions unlocking composite locks whose children
// record every invocation.
type lockFixture struct {
	b          *vmtest.Builder
	dispatcher ckb.Hash
	calls      []string
	argv       [][]string
}

func newLockFixture(chained bool) *lockFixture {
	f := &lockFixture{b: vmtest.New(nil)}
	if chained {
		f.dispatcher = f.b.Program(vm.NewImage("combine-lock-chained", Chained{}))
	} else {
		f.dispatcher = f.b.Program(vm.NewImage("combine-lock", Dispatcher{}))
	}
	return f
}

// child returns a child script whose image exits with code.
func (f *lockFixture) child(name string, code int8, args []byte) ckb.Script {
	img := vm.NewImage(name, vm.ProgramFunc(
		func(_ *vm.Machine, argv []string) error {
			f.calls = append(f.calls, name)
			f.argv = append(f.argv, argv)
			return vm.Exit(code)
		},
	))
	return ckb.Script{
		CodeHash: f.b.Program(img),
		HashType: ckb.HashTypeData1,
		Args:     args,
	}
}

func (f *lockFixture) lock(la LockArgs) ckb.Script {
	return ckb.Script{
		CodeHash: f.dispatcher,
		HashType: ckb.HashTypeData1,
		Args:     la.Bytes(),
	}
}

func (f *lockFixture) directLock(cfg *ChildScriptConfig) ckb.Script {
	return f.lock(LockArgs{ConfigHash: cfg.Hash()})
}

func (f *lockFixture) registryLock(id, current ckb.Hash) ckb.Script {
	return f.lock(LockArgs{
		ViaRegistry: true,
		RegistryID:  id,
		ConfigHash:  current,
	})
}

func lockWitness(w *CombineLockWitness) []byte {
	return (&ckb.WitnessArgs{Lock: w.Serialize()}).Serialize()
}

func (f *lockFixture) spend(lock ckb.Script, w *CombineLockWitness) int {
	return f.b.Input(ckb.CellOutput{Capacity: 100, Lock: lock}, nil,
		lockWitness(w))
}

// registryType returns the type script of a registry guarded by the
// registry type script.
func (f *lockFixture) registryType() ckb.Script {
	code := f.b.Program(vm.NewImage("registry-guard", registry.Guard{}))
	return ckb.Script{
		CodeHash: code,
		HashType: ckb.HashTypeData1,
		Args:     []byte("test registry"),
	}
}

func (f *lockFixture) configCell(typ ckb.Script, current,
	next ckb.Hash, record []byte) (ckb.CellOutput, []byte) {

	return ckb.CellOutput{
		Capacity: 1000,
		Lock:     f.registryLock(typ.Hash(), current),
		Type:     typ.Clone(),
	}, registry.PackConfigCellData(next, record)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.True(t, IsErrorCode(err, code), "want %v, got %v", code, err)
	require.Equal(t, int8(code), vm.ExitCode(err))
}

func inner(n int) [][]byte {
	w := make([][]byte, n)
	for i := range w {
		w[i] = []byte{byte(i), 0xab}
	}
	return w
}

func TestDispatcherRunsEveryChild(t *testing.T) {
	t.Parallel()

	f := newLockFixture(false)
	cfg := &ChildScriptConfig{
		Array: []ckb.Script{
			f.child("a", 0, []byte{0x01}),
			f.child("b", 0, []byte{0x02, 0x03}),
			f.child("c", 0, nil),
		},
		Index: [][]uint8{{0}, {2, 0, 1}},
	}
	witness := &CombineLockWitness{
		Index:        1,
		InnerWitness: inner(3),
		ScriptConfig: cfg.Serialize(),
	}
	f.spend(f.directLock(cfg), witness)

	require.NoError(t, f.b.Verify())
	require.Equal(t, []string{"c", "a", "b"}, f.calls)

	for i, want := range []int{2, 0, 1} {
		argv := f.argv[i]
		require.Len(t, argv, 2)

		entry, err := childentry.Parse(argv[0])
		require.NoError(t, err)
		require.Equal(t, cfg.Array[want].CodeHash, entry.CodeHash)
		require.Equal(t, cfg.Array[want].HashType, entry.HashType)
		require.Equal(t, uint16(want), entry.WitnessIndex)
		require.Equal(t, hex.EncodeToString(cfg.Array[want].Args),
			hex.EncodeToString(entry.Args))
		require.Equal(t, hex.EncodeUpperToString(witness.InnerWitness[want]), argv[1])
	}
}

func TestDispatcherStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	f := newLockFixture(false)
	cfg := &ChildScriptConfig{
		Array: []ckb.Script{
			f.child("a", 0, nil),
			f.child("b", 7, nil),
			f.child("c", 0, nil),
		},
		Index: [][]uint8{{0, 1, 2}},
	}
	f.spend(f.directLock(cfg), &CombineLockWitness{
		InnerWitness: inner(3),
		ScriptConfig: cfg.Serialize(),
	})

	err := f.b.Verify()
	requireCode(t, err, ErrUnlockFailed)
	require.Equal(t, []string{"a", "b"}, f.calls)
}

func TestDispatcherEmptyGroup(t *testing.T) {
	t.Parallel()

	f := newLockFixture(false)
	cfg := &ChildScriptConfig{
		Array: []ckb.Script{f.child("a", 1, nil)},
		Index: [][]uint8{{}},
	}
	f.spend(f.directLock(cfg), &CombineLockWitness{
		ScriptConfig: cfg.Serialize(),
	})

	require.NoError(t, f.b.Verify())
	require.Empty(t, f.calls)
}

func TestDispatcherRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(f *lockFixture, cfg *ChildScriptConfig)
		err   ErrorCode
	}{
		{
			name: "unknown args flag",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				lock := f.directLock(cfg)
				lock.Args[0] = 2
				f.spend(lock, &CombineLockWitness{
					InnerWitness: inner(2),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrWrongArgs,
		},
		{
			name: "short args",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				lock := f.directLock(cfg)
				lock.Args = lock.Args[:20]
				f.spend(lock, &CombineLockWitness{
					InnerWitness: inner(2),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrWrongArgs,
		},
		{
			name: "witness lock absent",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				f.b.Input(ckb.CellOutput{Capacity: 1, Lock: f.directLock(cfg)},
					nil, (&ckb.WitnessArgs{}).Serialize())
			},
			err: ErrWrongWitnessFormat,
		},
		{
			name: "witness not an envelope",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				f.b.Input(ckb.CellOutput{Capacity: 1, Lock: f.directLock(cfg)},
					nil, []byte{1, 2, 3})
			},
			err: ErrWrongWitnessFormat,
		},
		{
			name: "config missing from witness",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				f.spend(f.directLock(cfg), &CombineLockWitness{
					InnerWitness: inner(2),
				})
			},
			err: ErrWrongWitnessFormat,
		},
		{
			name: "config of another lock",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				other := &ChildScriptConfig{
					Array: cfg.Array,
					Index: [][]uint8{{0}},
				}
				f.spend(f.directLock(cfg), &CombineLockWitness{
					InnerWitness: inner(2),
					ScriptConfig: other.Serialize(),
				})
			},
			err: ErrWrongScriptConfigHash,
		},
		{
			name: "group out of bounds",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				f.spend(f.directLock(cfg), &CombineLockWitness{
					Index:        uint16(len(cfg.Index)),
					InnerWitness: inner(2),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrCombineLockWitnessIndexOutOfBounds,
		},
		{
			name: "child out of bounds",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				cfg.Index = append(cfg.Index, []uint8{0, 5})
				f.spend(f.directLock(cfg), &CombineLockWitness{
					Index:        1,
					InnerWitness: inner(6),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrChildScriptArrayIndexOutOfBounds,
		},
		{
			name: "inner witness missing",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				f.spend(f.directLock(cfg), &CombineLockWitness{
					InnerWitness: inner(1),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrInnerWitnessIndexOutOfBounds,
		},
		{
			name: "unknown child hash type",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				cfg.Array[1].HashType = ckb.ScriptHashType(3)
				f.spend(f.directLock(cfg), &CombineLockWitness{
					InnerWitness: inner(2),
					ScriptConfig: cfg.Serialize(),
				})
			},
			err: ErrWrongHashType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			f := newLockFixture(false)
			cfg := &ChildScriptConfig{
				Array: []ckb.Script{
					f.child("a", 0, nil),
					f.child("b", 0, nil),
				},
				Index: [][]uint8{{0, 1}},
			}
			tc.build(f, cfg)

			requireCode(tt, f.b.Verify(), tc.err)
			require.Empty(tt, f.calls)
		})
	}
}

func TestDispatcherRegistryLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(f *lockFixture, cfg *ChildScriptConfig)
		calls []string
		err   ErrorCode
	}{
		{
			name: "stored config",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				out, data := f.configCell(typ, cfg.Hash(),
					ckb.MaxHash, cfg.Serialize())
				f.b.Dep(out, data)

				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{InnerWitness: inner(1)})
			},
			calls: []string{"a"},
		},
		{
			name: "absence proven, config in witness",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				out, data := f.configCell(typ, ckb.ZeroHash,
					ckb.MaxHash, nil)
				f.b.Dep(out, data)

				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{
						InnerWitness: inner(1),
						ScriptConfig: cfg.Serialize(),
					})
			},
			calls: []string{"a"},
		},
		{
			name: "absence proven, no config in witness",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				out, data := f.configCell(typ, ckb.ZeroHash,
					ckb.MaxHash, nil)
				f.b.Dep(out, data)

				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{InnerWitness: inner(1)})
			},
			err: ErrWrongWitnessFormat,
		},
		{
			name: "no cell dep",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{
						InnerWitness: inner(1),
						ScriptConfig: cfg.Serialize(),
					})
			},
			err: ErrInvalidCellDepRef,
		},
		{
			name: "short config cell data",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				out, _ := f.configCell(typ, ckb.ZeroHash, ckb.MaxHash, nil)
				f.b.Dep(out, []byte{0xff, 0xff})

				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{
						InnerWitness: inner(1),
						ScriptConfig: cfg.Serialize(),
					})
			},
			err: ErrInvalidDataLength,
		},
		{
			name: "malformed stored config",
			build: func(f *lockFixture, cfg *ChildScriptConfig) {
				typ := f.registryType()
				out, data := f.configCell(typ, cfg.Hash(),
					ckb.MaxHash, []byte("garbage"))
				f.b.Dep(out, data)

				f.spend(f.registryLock(typ.Hash(), cfg.Hash()),
					&CombineLockWitness{InnerWitness: inner(1)})
			},
			err: ErrWrongMoleculeFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			f := newLockFixture(false)
			cfg := &ChildScriptConfig{
				Array: []ckb.Script{f.child("a", 0, nil)},
				Index: [][]uint8{{0}},
			}
			tc.build(f, cfg)

			err := f.b.Verify()
			if tc.err != 0 {
				requireCode(tt, err, tc.err)
				return
			}
			require.NoError(tt, err)
			require.Equal(tt, tc.calls, f.calls)
		})
	}
}

func TestDispatcherRegistryRoles(t *testing.T) {
	t.Parallel()

	setup := func() (*lockFixture, *ChildScriptConfig) {
		f := newLockFixture(false)
		cfg := &ChildScriptConfig{
			Array: []ckb.Script{f.child("a", 0, nil)},
			Index: [][]uint8{{0}},
		}
		return f, cfg
	}

	t.Run("insert", func(tt *testing.T) {
		tt.Parallel()

		f, cfg := setup()
		typ := f.registryType()
		target := cfg.Hash()

		out, data := f.configCell(typ, ckb.ZeroHash, ckb.MaxHash, []byte("root"))
		f.b.Input(out, data, nil)
		f.spend(f.registryLock(typ.Hash(), target), &CombineLockWitness{
			InnerWitness: inner(1),
			ScriptConfig: cfg.Serialize(),
		})

		out, data = f.configCell(typ, ckb.ZeroHash, target, []byte("root"))
		f.b.Output(out, data)
		out, data = f.configCell(typ, target, ckb.MaxHash, cfg.Serialize())
		f.b.Output(out, data)

		require.NoError(tt, f.b.Verify())
		require.Equal(tt, []string{"a"}, f.calls)
	})

	t.Run("insert with foreign config", func(tt *testing.T) {
		tt.Parallel()

		f, cfg := setup()
		typ := f.registryType()
		target := cfg.Hash()

		out, data := f.configCell(typ, ckb.ZeroHash, ckb.MaxHash, []byte("root"))
		f.b.Input(out, data, nil)
		other := &ChildScriptConfig{Array: cfg.Array, Index: [][]uint8{{}}}
		f.spend(f.registryLock(typ.Hash(), target), &CombineLockWitness{
			ScriptConfig: other.Serialize(),
		})

		out, data = f.configCell(typ, ckb.ZeroHash, target, []byte("root"))
		f.b.Output(out, data)
		out, data = f.configCell(typ, target, ckb.MaxHash, nil)
		f.b.Output(out, data)

		requireCode(tt, f.b.Verify(), ErrWrongScriptConfigHash)
	})

	t.Run("update by owner", func(tt *testing.T) {
		tt.Parallel()

		f, cfg := setup()
		typ := f.registryType()
		current := ckb.Blake2b256([]byte("owner"))

		out, data := f.configCell(typ, current, ckb.MaxHash, cfg.Serialize())
		f.b.Input(out, data, lockWitness(&CombineLockWitness{
			InnerWitness: inner(1),
		}))
		out, data = f.configCell(typ, current, ckb.MaxHash, []byte("new"))
		f.b.Output(out, data)

		require.NoError(tt, f.b.Verify())
		require.Equal(tt, []string{"a"}, f.calls)
	})

	t.Run("bystander", func(tt *testing.T) {
		tt.Parallel()

		f, cfg := setup()
		typ := f.registryType()
		current := ckb.Blake2b256([]byte("owner"))

		out, data := f.configCell(typ, current, ckb.MaxHash, cfg.Serialize())
		f.b.Input(out, data, lockWitness(&CombineLockWitness{
			InnerWitness: inner(1),
		}))
		out, data = f.configCell(typ, current, ckb.MaxHash, cfg.Serialize())
		f.b.Output(out, data)

		f.spend(f.registryLock(typ.Hash(), cfg.Hash()), &CombineLockWitness{
			InnerWitness: inner(1),
			ScriptConfig: cfg.Serialize(),
		})

		requireCode(tt, f.b.Verify(), ErrNoRegistryRole)
	})
}

// TestDispatcherSplitGroupWithAssets spends, next to the config cell an
// insert splits, an asset cell bound to the configuration that cell stores.
// Both share one lock, so the group must authorize like any other spend.
func TestDispatcherSplitGroupWithAssets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		signed bool
		code   ErrorCode
	}{
		{name: "no witness", code: ErrWrongWitnessFormat},
		{name: "owner witness", signed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			f := newLockFixture(false)
			typ := f.registryType()
			owner := &ChildScriptConfig{
				Array: []ckb.Script{f.child("owner", 0, nil)},
				Index: [][]uint8{{0}},
			}
			current := owner.Hash()

			// The inserted configuration must sort after current.
			code := f.child("insert", 0, nil)
			var inserted *ChildScriptConfig
			for i := 0; ; i++ {
				child := code
				child.Args = []byte{byte(i >> 8), byte(i)}
				inserted = &ChildScriptConfig{
					Array: []ckb.Script{child},
					Index: [][]uint8{{0}},
				}
				if current.Less(inserted.Hash()) {
					break
				}
			}
			target := inserted.Hash()

			var witness []byte
			if tc.signed {
				witness = lockWitness(&CombineLockWitness{
					InnerWitness: inner(1),
					ScriptConfig: owner.Serialize(),
				})
			}
			out, data := f.configCell(typ, current, ckb.MaxHash,
				owner.Serialize())
			f.b.Input(out, data, witness)
			f.b.Input(ckb.CellOutput{
				Capacity: 5000,
				Lock:     f.registryLock(typ.Hash(), current),
			}, nil, nil)
			f.spend(f.registryLock(typ.Hash(), target), &CombineLockWitness{
				InnerWitness: inner(1),
				ScriptConfig: inserted.Serialize(),
			})

			out, data = f.configCell(typ, current, target, owner.Serialize())
			f.b.Output(out, data)
			out, data = f.configCell(typ, target, ckb.MaxHash,
				inserted.Serialize())
			f.b.Output(out, data)
			f.b.Output(ckb.CellOutput{
				Capacity: 5000,
				Lock:     f.b.AlwaysSuccessLock(nil),
			}, nil)

			err := f.b.Verify()
			if tc.code != 0 {
				requireCode(tt, err, tc.code)
				require.NotContains(tt, f.calls, "owner")
				return
			}
			require.NoError(tt, err)
			require.Contains(tt, f.calls, "owner")
			require.Contains(tt, f.calls, "insert")
		})
	}
}

func TestChainedHandsOverEveryEntry(t *testing.T) {
	t.Parallel()

	f := newLockFixture(true)
	cfg := &ChildScriptConfig{
		Array: []ckb.Script{
			f.child("a", 0, []byte{0xaa}),
			f.child("b", 0, []byte{0xbb}),
		},
		Index: [][]uint8{{1, 0}},
	}
	f.spend(f.directLock(cfg), &CombineLockWitness{
		InnerWitness: inner(2),
		ScriptConfig: cfg.Serialize(),
	})

	require.NoError(t, f.b.Verify())

	// Only the first child runs here; it would exec the next entry.
	require.Equal(t, []string{"b"}, f.calls)
	require.Len(t, f.argv[0], 2)

	for i, want := range []int{1, 0} {
		entry, err := childentry.Parse(f.argv[0][i])
		require.NoError(t, err)
		require.Equal(t, cfg.Array[want].CodeHash, entry.CodeHash)
		require.Equal(t, uint16(want), entry.WitnessIndex)
	}
}

func TestChainedValidatesBeforeRunning(t *testing.T) {
	t.Parallel()

	f := newLockFixture(true)
	cfg := &ChildScriptConfig{
		Array: []ckb.Script{
			f.child("a", 0, nil),
			{CodeHash: ckb.MaxHash, HashType: ckb.ScriptHashType(9)},
		},
		Index: [][]uint8{{0, 1}},
	}
	f.spend(f.directLock(cfg), &CombineLockWitness{
		InnerWitness: inner(2),
		ScriptConfig: cfg.Serialize(),
	})

	requireCode(t, f.b.Verify(), ErrWrongHashType)
	require.Empty(t, f.calls)
}
