package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads the configuration from environment variables, applies the
// `default` tags and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// fieldParser converts an environment value into a field of one type.
type fieldParser func(value string) (reflect.Value, error)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringsType  = reflect.TypeOf([]string(nil))
)

// parsers covers every field type used by Config. Adding a field of another
// type fails Load with "unsupported field type".
var parsers = map[reflect.Type]fieldParser{
	reflect.TypeOf(""): func(s string) (reflect.Value, error) {
		return reflect.ValueOf(s), nil
	},
	reflect.TypeOf(0): func(s string) (reflect.Value, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid integer: %w", err)
		}
		return reflect.ValueOf(n), nil
	},
	reflect.TypeOf(int64(0)): func(s string) (reflect.Value, error) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid integer: %w", err)
		}
		return reflect.ValueOf(n), nil
	},
	reflect.TypeOf(false): func(s string) (reflect.Value, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid boolean: %w", err)
		}
		return reflect.ValueOf(b), nil
	},
	durationType: func(s string) (reflect.Value, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid duration: %w", err)
		}
		return reflect.ValueOf(d), nil
	},
	stringsType: func(s string) (reflect.Value, error) {
		return reflect.ValueOf(splitList(s)), nil
	},
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// lookup returns the first non-empty value among the field's env tags, or
// its default.
func lookup(field reflect.StructField) (name, value string, err error) {
	name = field.Tag.Get("env")
	value = os.Getenv(name)
	if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
		value = os.Getenv(alt)
	}
	if value != "" {
		return name, value, nil
	}
	if field.Tag.Get("required") == "true" {
		return name, "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return name, field.Tag.Get("default"), nil
}

// loadStruct fills the tagged fields of v, descending into nested sections.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		dst := v.Field(i)
		if !dst.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(dst); err != nil {
				return err
			}
			continue
		}
		if field.Tag.Get("env") == "" {
			continue
		}

		name, value, err := lookup(field)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}

		parse, ok := parsers[field.Type]
		if !ok {
			return fmt.Errorf("%s: unsupported field type %s", name, field.Type)
		}
		parsed, err := parse(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
		dst.Set(parsed)
	}

	return nil
}
