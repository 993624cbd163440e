package config

import (
	"reflect"
	"time"
)

// ToMap returns the config as nested maps keyed by koanf tag, the same shape
// the YAML file uses. Durations are rendered as strings ("15m0s").
func ToMap(cfg *ServerConfig) map[string]any {
	return structToMap(reflect.ValueOf(cfg).Elem())
}

var durationType = reflect.TypeOf(time.Duration(0))

func structToMap(v reflect.Value) map[string]any {
	out := make(map[string]any, v.NumField())
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		key := f.Tag.Get("koanf")
		if key == "" || key == "-" || !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		switch {
		case f.Type == durationType:
			out[key] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			out[key] = structToMap(fv)
		default:
			out[key] = fv.Interface()
		}
	}
	return out
}
