package childentry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/stretchr/testify/require"
)

const sampleEntry = "11223344556677889900AABBCCDDEEFF11223344556677889900AABBCCDDEEFF:1:2A13:2312341231"

func TestParseNatural(t *testing.T) {
	t.Parallel()

	e, err := Parse(sampleEntry)
	require.NoError(t, err)

	wantHash := []byte{
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00, 0xaa,
		0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
		0x77, 0x88, 0x99, 0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
	}
	require.Equal(t, wantHash, e.CodeHash[:])
	require.Equal(t, ckb.HashTypeType, e.HashType)
	require.Equal(t, uint16(0x2A13), e.WitnessIndex)
	require.Equal(t, []byte{0x23, 0x12, 0x34, 0x12, 0x31}, e.Args)

	s, err := e.Encode()
	require.NoError(t, err)
	require.Equal(t, sampleEntry, s)
	require.Equal(t, sampleEntry, e.String())
}

func TestParseReversed(t *testing.T) {
	t.Parallel()

	e, err := ParseReversed(sampleEntry)
	require.NoError(t, err)

	wantHash := []byte{
		0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa, 0x00, 0x99, 0x88, 0x77, 0x66,
		0x55, 0x44, 0x33, 0x22, 0x11, 0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa,
		0x00, 0x99, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11,
	}
	require.Equal(t, wantHash, e.CodeHash[:])
	require.Equal(t, ckb.HashTypeType, e.HashType)
	require.Equal(t, uint16(0x2A13), e.WitnessIndex)
	require.Equal(t, []byte{0x31, 0x12, 0x34, 0x12, 0x23}, e.Args)

	s, err := e.EncodeReversed()
	require.NoError(t, err)
	require.Equal(t, sampleEntry, s)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	hash := strings.Repeat("AB", 32)

	tests := []struct {
		name  string
		entry string
		code  ErrorCode
	}{
		{"lowercase digit", strings.ToLower(hash) + ":1:0:", ErrInvalidCharacter},
		{"space", hash + ":1:0: ", ErrInvalidCharacter},
		{"prefix", "0x" + hash + ":1:0:", ErrInvalidCharacter},
		{"three fields", hash + ":1:0", ErrFieldCount},
		{"five fields", hash + ":1:0::", ErrFieldCount},
		{"short code hash", hash[2:] + ":1:0:", ErrCodeHash},
		{"long code hash", hash + "AB:1:0:", ErrCodeHash},
		{"empty hash type", hash + "::0:", ErrHashType},
		{"hash type 3", hash + ":3:0:", ErrHashType},
		{"hash type A", hash + ":A:0:", ErrHashType},
		{"wide hash type", hash + ":01:0:", ErrHashType},
		{"empty witness index", hash + ":1::", ErrWitnessIndex},
		{"wide witness index", hash + ":1:12345:", ErrWitnessIndex},
		{"leading zero", hash + ":1:01:", ErrWitnessIndex},
		{"odd args", hash + ":1:0:ABC", ErrArgs},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			_, err := Parse(tc.entry)
			require.True(tt, IsErrorCode(err, tc.code), "want %v, got %v", tc.code, err)

			_, err = ParseReversed(tc.entry)
			require.True(tt, IsErrorCode(err, tc.code), "want %v, got %v", tc.code, err)

			var coder interface{ ExitCode() int8 }
			require.ErrorAs(tt, err, &coder)
			require.Equal(tt, ExitWrongEntry, coder.ExitCode())
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "zero witness index and empty args",
			entry: Entry{HashType: ckb.HashTypeData},
			want:  strings.Repeat("0", 64) + ":0:0:",
		},
		{
			name: "max witness index",
			entry: Entry{
				CodeHash:     ckb.MaxHash,
				HashType:     ckb.HashTypeData1,
				WitnessIndex: MaxWitnessIndex,
				Args:         []byte{0x00, 0x0f, 0xf0},
			},
			want: strings.Repeat("F", 64) + ":2:FFFF:000FF0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			s, err := tc.entry.Encode()
			require.NoError(tt, err)
			require.Equal(tt, tc.want, s)

			back, err := Parse(s)
			require.NoError(tt, err)
			require.Equal(tt, tc.entry.CodeHash, back.CodeHash)
			require.Equal(tt, tc.entry.HashType, back.HashType)
			require.Equal(tt, tc.entry.WitnessIndex, back.WitnessIndex)
			require.True(tt, bytes.Equal(tc.entry.Args, back.Args))

			rs, err := tc.entry.EncodeReversed()
			require.NoError(tt, err)
			rback, err := ParseReversed(rs)
			require.NoError(tt, err)
			require.Equal(tt, tc.entry.CodeHash, rback.CodeHash)
			require.True(tt, bytes.Equal(tc.entry.Args, rback.Args))
		})
	}
}

func TestEncodeLimits(t *testing.T) {
	t.Parallel()

	e := Entry{Args: make([]byte, MaxArgsSize)}
	_, err := e.Encode()
	require.NoError(t, err)

	e.Args = make([]byte, MaxArgsSize+1)
	_, err = e.Encode()
	require.True(t, IsErrorCode(err, ErrArgsTooLong), err)
	_, err = e.EncodeReversed()
	require.True(t, IsErrorCode(err, ErrArgsTooLong), err)

	e = Entry{HashType: ckb.ScriptHashType(3)}
	_, err = e.Encode()
	require.True(t, IsErrorCode(err, ErrHashType), err)
}

func FuzzParse(f *testing.F) {
	f.Add(sampleEntry)
	f.Add(strings.Repeat("0", 64) + ":0:0:")
	f.Add("::::")

	f.Fuzz(func(t *testing.T, s string) {
		if e, err := Parse(s); err == nil {
			out, err := e.Encode()
			if err != nil {
				t.Fatalf("accepted %q but cannot encode it: %v", s, err)
			}
			if out != s {
				t.Fatalf("natural round trip of %q gave %q", s, out)
			}
		}
		if e, err := ParseReversed(s); err == nil {
			out, err := e.EncodeReversed()
			if err != nil {
				t.Fatalf("accepted %q but cannot encode it: %v", s, err)
			}
			if out != s {
				t.Fatalf("reversed round trip of %q gave %q", s, out)
			}
		}
	})
}
