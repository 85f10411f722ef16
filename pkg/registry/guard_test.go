package registry

import (
	"testing"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/ArkLabsHQ/combinelock/pkg/vm/vmtest"
	"github.com/stretchr/testify/require"
)

// registryFixture builds transactions touching one registry whose config
// cells are locked by an always-success lock.
type registryFixture struct {
	b   *vmtest.Builder
	typ ckb.Script
	id  ckb.Hash
}

func newRegistryFixture(b *vmtest.Builder, args []byte) *registryFixture {
	codeHash := b.Program(vm.NewImage("registry-guard", Guard{}))
	typ := ckb.Script{
		CodeHash: codeHash,
		HashType: ckb.HashTypeData1,
		Args:     args,
	}
	return &registryFixture{b: b, typ: typ, id: typ.Hash()}
}

func (f *registryFixture) lock(current ckb.Hash) ckb.Script {
	return f.b.AlwaysSuccessLock(RegistryLock{
		RegistryID: f.id,
		Current:    current,
	}.FlaggedArgs())
}

func (f *registryFixture) configCell(current, next ckb.Hash,
	record string) (ckb.CellOutput, []byte) {

	return ckb.CellOutput{
		Capacity: 1000,
		Lock:     f.lock(current),
		Type:     f.typ.Clone(),
	}, PackConfigCellData(next, []byte(record))
}

func (f *registryFixture) inputConfig(current, next ckb.Hash, record string) {
	out, data := f.configCell(current, next, record)
	f.b.Input(out, data, nil)
}

func (f *registryFixture) outputConfig(current, next ckb.Hash, record string) {
	out, data := f.configCell(current, next, record)
	f.b.Output(out, data)
}

func (f *registryFixture) inputAsset(target ckb.Hash) {
	f.b.Input(ckb.CellOutput{Capacity: 500, Lock: f.lock(target)}, nil, nil)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.True(t, IsErrorCode(err, code), "want %v, got %v", code, err)
	require.Equal(t, int8(code), vm.ExitCode(err))
}

func TestGuardBootstrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(b *vmtest.Builder)
		err   ErrorCode
	}{
		{
			name: "valid",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 0)
				f := newRegistryFixture(b, initHash.Bytes())
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "")
			},
		},
		{
			name: "registry after a plain output",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				b.Output(ckb.CellOutput{Capacity: 5, Lock: b.AlwaysSuccessLock(nil)}, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 1)
				f := newRegistryFixture(b, initHash.Bytes())
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "")
			},
		},
		{
			name: "args bound to another output index",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 1)
				f := newRegistryFixture(b, initHash.Bytes())
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "")
			},
			err: ErrInvalidInitHash,
		},
		{
			name: "arbitrary args",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				f := newRegistryFixture(b, []byte{1, 2, 3})
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "")
			},
			err: ErrInvalidInitHash,
		},
		{
			name: "partial range",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 0)
				f := newRegistryFixture(b, initHash.Bytes())
				f.outputConfig(ckb.ZeroHash, filled(0x80), "")
			},
			err: ErrInvalidInitValues,
		},
		{
			name: "two initial cells",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 0)
				f := newRegistryFixture(b, initHash.Bytes())
				f.outputConfig(ckb.ZeroHash, filled(0x80), "")
				f.outputConfig(filled(0x80), ckb.MaxHash, "")
			},
			err: ErrInvalidInitValues,
		},
		{
			name: "lock of another registry",
			build: func(b *vmtest.Builder) {
				b.Input(ckb.CellOutput{Capacity: 10, Lock: b.AlwaysSuccessLock(nil)}, nil, nil)
				initHash := InitHash(b.Transaction().Inputs[0], 0)
				f := newRegistryFixture(b, initHash.Bytes())
				out, data := f.configCell(ckb.ZeroHash, ckb.MaxHash, "")
				out.Lock = b.AlwaysSuccessLock(RegistryLock{
					RegistryID: filled(0x42),
				}.FlaggedArgs())
				b.Output(out, data)
			},
			err: ErrInvalidInitValues,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			b := vmtest.New(nil)
			tc.build(b)

			err := b.Verify()
			if tc.err == 0 {
				require.NoError(tt, err)
				return
			}
			requireCode(tt, err, tc.err)
		})
	}
}

func TestGuardInsertAndUpdate(t *testing.T) {
	t.Parallel()

	var (
		h1 = hashOf(0x10)
		h2 = hashOf(0x20)
		h3 = hashOf(0x30)
	)

	tests := []struct {
		name  string
		build func(f *registryFixture)
		err   ErrorCode
	}{
		{
			name: "insert two config cells",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h1)
				f.inputAsset(h2)
				f.outputConfig(ckb.ZeroHash, h1, "root")
				f.outputConfig(h1, h2, "one")
				f.outputConfig(h2, ckb.MaxHash, "two")
			},
		},
		{
			name: "insert with outputs out of order",
			build: func(f *registryFixture) {
				f.inputAsset(h2)
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.outputConfig(h2, ckb.MaxHash, "two")
				f.outputConfig(ckb.ZeroHash, h2, "root")
			},
		},
		{
			name: "inserted lock not consumed",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h1)
				f.inputAsset(h3)
				f.outputConfig(ckb.ZeroHash, h1, "root")
				f.outputConfig(h1, h2, "one")
				f.outputConfig(h2, ckb.MaxHash, "two")
			},
			err: ErrLockScriptNotExisting,
		},
		{
			name: "inserted lock taken twice",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h1)
				f.inputAsset(h2)
				f.outputConfig(ckb.ZeroHash, h1, "root")
				f.outputConfig(h1, h2, "one")
				f.outputConfig(h1, ckb.MaxHash, "again")
			},
			err: ErrLockScriptDup,
		},
		{
			name: "split cell data changed",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h1)
				f.outputConfig(ckb.ZeroHash, h1, "changed")
				f.outputConfig(h1, ckb.MaxHash, "one")
			},
			err: ErrConfigCellUnchanged,
		},
		{
			name: "split cell capacity changed",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h1)
				out, data := f.configCell(ckb.ZeroHash, h1, "root")
				out.Capacity++
				f.b.Output(out, data)
				f.outputConfig(h1, ckb.MaxHash, "one")
			},
			err: ErrConfigCellUnchanged,
		},
		{
			name: "gap after insert",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.inputAsset(h2)
				f.outputConfig(ckb.ZeroHash, h1, "root")
				f.outputConfig(h2, ckb.MaxHash, "two")
			},
			err: ErrInvalidLinkedList,
		},
		{
			name: "consumed range dropped",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, h1, "low")
				f.inputConfig(h1, ckb.MaxHash, "high")
				f.outputConfig(ckb.ZeroHash, h1, "low")
			},
			err: ErrInvalidLinkedList,
		},
		{
			name: "overlapping inputs",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, h2, "low")
				f.inputConfig(h1, ckb.MaxHash, "high")
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "all")
			},
			err: ErrOverlapPair,
		},
		{
			name: "output outside consumed range",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, h2, "low")
				f.outputConfig(ckb.ZeroHash, h3, "low")
			},
			err: ErrDanglingPair,
		},
		{
			name: "foreign typed output",
			build: func(f *registryFixture) {
				f.inputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.outputConfig(ckb.ZeroHash, ckb.MaxHash, "root")
				f.b.Output(ckb.CellOutput{
					Capacity: 1,
					Lock:     f.b.AlwaysSuccessLock(nil),
					Type:     &ckb.Script{CodeHash: filled(0x55)},
				}, nil)
			},
			err: ErrOutputTypeForbidden,
		},
		{
			name: "update stored configuration",
			build: func(f *registryFixture) {
				f.inputConfig(h1, h2, "old")
				f.outputConfig(h1, h2, "new")
			},
		},
		{
			name: "update with a new lock",
			build: func(f *registryFixture) {
				f.inputConfig(h1, h2, "old")
				out, data := f.configCell(h1, h2, "old")
				out.Lock = f.b.AlwaysSuccessLock(RegistryLock{
					RegistryID: f.id,
					Current:    h1,
				}.PlainArgs())
				f.b.Output(out, data)
			},
			err: ErrUpdateFailed,
		},
		{
			name: "config cell lock unreadable",
			build: func(f *registryFixture) {
				out, data := f.configCell(h1, h2, "old")
				out.Lock.Args = []byte{1, 2, 3}
				f.b.Input(out, data, nil)
				f.outputConfig(h1, h2, "old")
			},
			err: ErrCommonError,
		},
		{
			name: "config cell range inverted",
			build: func(f *registryFixture) {
				f.inputConfig(h1, h2, "old")
				f.outputConfig(h2, h1, "old")
			},
			err: ErrInvalidLinkedList,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			f := newRegistryFixture(vmtest.New(nil), filled(0x77).Bytes())
			tc.build(f)

			err := f.b.Verify()
			if tc.err == 0 {
				require.NoError(tt, err)
				return
			}
			requireCode(tt, err, tc.err)
		})
	}
}
