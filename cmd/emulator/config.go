package main

import (
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// config is the emulator's TOML configuration file, overridden field by
// field by any CLI flag the user also passed.
type config struct {
	Endpoint  string `toml:"endpoint"`
	ProgramID string `toml:"program_id"`
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return errors.Errorf("config: field %q is not defined in %s", field, rt.String())
	},
}

func loadConfig(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "emulator: open config")
	}
	defer f.Close()
	return tomlSettings.NewDecoder(f).Decode(cfg)
}

func parseProgramID(s string) (common.HKey, error) {
	if s == "" {
		return common.HKey{}, errors.New("emulator: program-id is required")
	}
	return hkeyFromBase58(s)
}
