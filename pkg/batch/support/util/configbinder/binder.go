// Package configbinder binds loosely typed property maps (adaptor sections of the YAML
// configuration, tasklet properties) onto typed structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Bind decodes properties into target, matching keys against `yaml` tags.
// Strings are converted to numbers, bools and durations where the target field requires it.
func Bind(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType != nil && targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to %v: %w", targetType, err)
	}
	return nil
}

// BindStrings is Bind for string-valued property maps.
func BindStrings(properties map[string]string, target interface{}) error {
	converted := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		converted[k] = v
	}
	return Bind(converted, target)
}

// BindSection binds properties[name] onto target. It reports false when the section is absent.
func BindSection(properties map[string]interface{}, name string, target interface{}) (bool, error) {
	raw, ok := properties[name]
	if !ok || raw == nil {
		return false, nil
	}
	section, ok := raw.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("section '%s' is %T, expected a mapping", name, raw)
	}
	return true, Bind(section, target)
}
