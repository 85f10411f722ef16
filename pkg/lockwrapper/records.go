package lockwrapper

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

// ConfigCellData is the configuration record a wrapper's config cell stores
// after its next hash.
//
//	table ConfigCellData {
//	    wrapped_script: Script,
//	    script_config:  Bytes,
//	}
type ConfigCellData struct {
	WrappedScript ckb.Script
	ScriptConfig  []byte
}

// Serialize returns the molecule encoding of the record.
func (d *ConfigCellData) Serialize() []byte {
	return molecule.PackTable(
		d.WrappedScript.Serialize(),
		molecule.PackBytes(d.ScriptConfig),
	)
}

// DecodeConfigCellData decodes a config cell record.
func DecodeConfigCellData(data []byte) (*ConfigCellData, error) {
	fields, err := molecule.Table(data, 2, false)
	if err != nil {
		return nil, formatError("config cell data", err)
	}
	script, err := ckb.DecodeScript(fields[0])
	if err != nil {
		return nil, formatError("wrapped script", err)
	}
	config, err := molecule.Bytes(fields[1])
	if err != nil {
		return nil, formatError("script config", err)
	}

	return &ConfigCellData{
		WrappedScript: *script,
		ScriptConfig:  append([]byte{}, config...),
	}, nil
}

// Witness is the lock field of the witness unlocking a wrapper.
//
//	table LockWrapperWitness {
//	    wrapped_script:  ScriptOpt,
//	    wrapped_witness: Bytes,
//	}
//
// The wrapped script is only needed when no config cell stores it.
type Witness struct {
	WrappedScript  *ckb.Script
	WrappedWitness []byte
}

// Serialize returns the molecule encoding of the witness.
func (w *Witness) Serialize() []byte {
	return molecule.PackTable(
		ckb.SerializeScriptOpt(w.WrappedScript),
		molecule.PackBytes(w.WrappedWitness),
	)
}

// DecodeWitness decodes a witness lock field.
func DecodeWitness(data []byte) (*Witness, error) {
	fields, err := molecule.Table(data, 2, false)
	if err != nil {
		return nil, formatError("lock wrapper witness", err)
	}
	script, err := ckb.DecodeScriptOpt(fields[0])
	if err != nil {
		return nil, formatError("wrapped script", err)
	}
	witness, err := molecule.Bytes(fields[1])
	if err != nil {
		return nil, formatError("wrapped witness", err)
	}

	return &Witness{
		WrappedScript:  script,
		WrappedWitness: append([]byte{}, witness...),
	}, nil
}

func formatError(what string, err error) error {
	str := fmt.Sprintf("malformed %s: %v", what, err)
	return wrapperError(ErrWrongFormat, str)
}
