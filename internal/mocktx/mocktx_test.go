package mocktx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ArkLabsHQ/combinelock/internal/builtin"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/ArkLabsHQ/combinelock/pkg/vm/vmtest"
	"github.com/stretchr/testify/require"
)

func alwaysSuccess(b *vmtest.Builder, args []byte) ckb.Script {
	img, _ := b.Programs().ByName(builtin.AlwaysSuccess)
	return ckb.Script{
		CodeHash: b.Program(img),
		HashType: ckb.HashTypeData1,
		Args:     args,
	}
}

func TestRoundTripVerifies(t *testing.T) {
	t.Parallel()

	programs := builtin.Programs()
	b := vmtest.New(programs)
	lock := alwaysSuccess(b, []byte{1, 2})
	typ := alwaysSuccess(b, nil)
	b.Input(ckb.CellOutput{Capacity: 100, Lock: lock}, []byte{0xaa},
		(&ckb.WitnessArgs{Lock: []byte{3}}).Serialize())
	b.Output(ckb.CellOutput{
		Capacity: 90,
		Lock:     lock,
		Type:     typ.Clone(),
	}, nil)

	rtx := b.Build()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FromResolved(rtx, programs)))
	require.Contains(t, buf.String(), "@always-success")
	require.Contains(t, buf.String(), "hash_type: data1")

	f, err := Decode(buf.Bytes())
	require.NoError(t, err)
	back, err := f.Resolve(programs)
	require.NoError(t, err)
	require.Equal(t, rtx.Transaction.Hash(), back.Transaction.Hash())
	require.Equal(t, rtx.Transaction.Witnesses, back.Transaction.Witnesses)

	engine, err := vm.NewEngine(back, programs, nil, vm.DefaultLimits)
	require.NoError(t, err)
	require.NoError(t, engine.Verify())
}

const jsonFile = `{
  "cell_deps": [
    {"output": {"capacity": 1, "lock": {"code_hash": "0x` +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	`", "hash_type": "data"}, "data": "@exit-with-args"}}
  ],
  "inputs": [
    {"since": 7, "output": {"capacity": 10, "lock": {"code_hash":
      "@exit-with-args", "hash_type": "data1", "args": "0x05"}}}
  ],
  "witnesses": ["0x"]
}`

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	programs := builtin.Programs()
	f, err := Decode([]byte(jsonFile))
	require.NoError(t, err)

	rtx, err := f.Resolve(programs)
	require.NoError(t, err)
	require.Len(t, rtx.CellDeps, 1)
	require.Equal(t, uint64(7), rtx.Transaction.Inputs[0].Since)
	require.Equal(t, mockOutPoint("input", 0),
		rtx.Transaction.Inputs[0].PreviousOutput)

	img, _ := programs.ByName(builtin.ExitWithArgs)
	require.Equal(t, img.DataHash(), rtx.Inputs[0].Output.Lock.CodeHash)
	require.Equal(t, img.Data, rtx.CellDeps[0].Data)

	// The lock runs outside a composite lock and exits with its args.
	engine, err := vm.NewEngine(rtx, programs, nil, vm.DefaultLimits)
	require.NoError(t, err)
	require.Error(t, engine.Verify())
}

func TestResolveRejects(t *testing.T) {
	t.Parallel()

	lock := Script{CodeHash: "@always-success", HashType: ckb.HashTypeData1}
	tests := []struct {
		name string
		file File
		want string
	}{
		{
			name: "unknown image",
			file: File{Outputs: []Output{{
				Lock: Script{CodeHash: "@nope"},
			}}},
			want: "unknown image @nope",
		},
		{
			name: "bad code hash",
			file: File{Outputs: []Output{{
				Lock: Script{CodeHash: "0x1234"},
			}}},
			want: "code hash",
		},
		{
			name: "bad data",
			file: File{Outputs: []Output{{Lock: lock, Data: "0xz"}}},
			want: "data",
		},
		{
			name: "bad witness",
			file: File{Witnesses: []string{"0x0"}},
			want: "witness 0",
		},
		{
			name: "input not mocked",
			file: File{Inputs: []Cell{{}}},
			want: "input 0: cell is not mocked",
		},
		{
			name: "dep group",
			file: File{CellDeps: []Cell{{
				DepType: ckb.DepTypeDepGroup,
				Output:  &Output{Lock: lock},
			}}},
			want: "dep_group deps cannot be mocked",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			_, err := tc.file.Resolve(builtin.Programs())
			require.Error(tt, err)
			require.True(tt, strings.Contains(err.Error(), tc.want),
				err.Error())
		})
	}
}

func TestTransactionKeepsOutPoints(t *testing.T) {
	t.Parallel()

	op := &OutPoint{TxHash: ckb.MaxHash, Index: 3}
	f := &File{
		CellDeps: []Cell{{OutPoint: op, DepType: ckb.DepTypeDepGroup}},
		Inputs:   []Cell{{OutPoint: op}},
	}

	tx, err := f.Transaction(nil)
	require.NoError(t, err)
	want := ckb.OutPoint{TxHash: ckb.MaxHash, Index: 3}
	require.Equal(t, want, tx.Inputs[0].PreviousOutput)
	require.Equal(t, want, tx.CellDeps[0].OutPoint)
	require.Equal(t, ckb.DepTypeDepGroup, tx.CellDeps[0].DepType)
}
