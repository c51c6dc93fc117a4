package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every configuration environment variable
const EnvPrefix = "TRAVELSEC"

// LoadEnv overlays TRAVELSEC_* variables onto cfg. Names follow the yaml
// path, upper-cased and joined by "_" (TRAVELSEC_SERVER_PORT). Maps such
// as the cost table are file-only.
func LoadEnv(cfg *Config) error {
	return applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix)
}

// envKey returns the variable name for a field, or "" for fields without
// a yaml name
func envKey(prefix string, field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
	if name == "" || name == "-" {
		return ""
	}
	return prefix + "_" + strings.ToUpper(name)
}

func applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		key := envKey(prefix, t.Field(i))
		if key == "" || !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.Struct:
			if err := applyEnv(field, key); err != nil {
				return err
			}
			continue
		case reflect.Ptr:
			if field.Type().Elem().Kind() != reflect.Struct {
				continue
			}
			if field.IsNil() {
				if !hasEnvVarsWithPrefix(key) {
					continue
				}
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := applyEnv(field.Elem(), key); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(raw, ",")
		values := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				values = reflect.Append(values, reflect.ValueOf(part))
			}
		}
		field.Set(values)
	}
	return nil
}

// hasEnvVarsWithPrefix reports whether any variable lives under prefix
func hasEnvVarsWithPrefix(prefix string) bool {
	prefix += "_"
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}

// EnvExample lists one sample assignment per supported variable
func EnvExample(cfg *Config) []string {
	var out []string
	collectExamples(reflect.TypeOf(cfg).Elem(), EnvPrefix, &out)
	return out
}

var sampleValues = map[reflect.Kind]string{
	reflect.String:  "value",
	reflect.Int:     "123",
	reflect.Int64:   "123",
	reflect.Float64: "1.5",
	reflect.Bool:    "true",
}

func collectExamples(t reflect.Type, prefix string, out *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := envKey(prefix, field)
		if key == "" {
			continue
		}

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct:
			collectExamples(ft, key, out)
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.String:
			*out = append(*out, key+"=value1,value2,value3")
		default:
			if sample, ok := sampleValues[ft.Kind()]; ok {
				*out = append(*out, key+"="+sample)
			}
		}
	}
}
