package plugin

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeOptions decodes a plugin options map into out, a pointer to the
// plugin's typed config. Fields use mapstructure tags. Strings are accepted
// for durations ("5s") and for comma-separated lists; numbers may arrive as
// int or float64 depending on the config source.
func DecodeOptions(cfg map[string]any, out any) error {
	if cfg == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid plugin options: %w", err)
	}
	return nil
}
