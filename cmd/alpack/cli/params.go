// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, a pointer to a struct. A malformed params type panics.
//
//	var params runParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("run", &params) },
//	    Run:   func(ctx context.Context, args []string, logger *slog.Logger) error { ... },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers one flag per tagged field of params:
//
//	Name string `flag:"name,n" desc:"help text" default:"value"`
//
// The flag tag holds the long name and an optional shorthand; untagged
// fields are skipped. Field types are string, bool, int, time.Duration
// and []string. A []string flag is repeatable and never split on commas,
// so bind specs and KEY=VALUE assignments may contain them. Embedded
// structs contribute their own tagged fields.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	for _, field := range reflect.VisibleFields(structValue.Type()) {
		if field.Anonymous {
			continue
		}
		tag, ok := field.Tag.Lookup("flag")
		if !ok || !field.IsExported() {
			continue
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		target := structValue.FieldByIndex(field.Index).Addr().Interface()
		spec := flagSpec{
			name:        name,
			shorthand:   shorthand,
			description: field.Tag.Get("desc"),
			fallback:    field.Tag.Get("default"),
		}
		if err := spec.bind(flagSet, target); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

type flagSpec struct {
	name, shorthand, description, fallback string
}

func (s flagSpec) bind(flagSet *pflag.FlagSet, target any) error {
	switch target := target.(type) {
	case *string:
		flagSet.StringVarP(target, s.name, s.shorthand, s.fallback, s.description)
	case *bool:
		value, err := parseDefault(s, strconv.ParseBool)
		if err != nil {
			return err
		}
		flagSet.BoolVarP(target, s.name, s.shorthand, value, s.description)
	case *int:
		value, err := parseDefault(s, strconv.Atoi)
		if err != nil {
			return err
		}
		flagSet.IntVarP(target, s.name, s.shorthand, value, s.description)
	case *time.Duration:
		value, err := parseDefault(s, time.ParseDuration)
		if err != nil {
			return err
		}
		flagSet.DurationVarP(target, s.name, s.shorthand, value, s.description)
	case *[]string:
		var value []string
		if s.fallback != "" {
			value = strings.Split(s.fallback, ",")
		}
		flagSet.StringArrayVarP(target, s.name, s.shorthand, value, s.description)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", target, s.name)
	}
	return nil
}

// parseDefault parses the default tag, or returns the zero value when
// there is none.
func parseDefault[T any](s flagSpec, parse func(string) (T, error)) (T, error) {
	var zero T
	if s.fallback == "" {
		return zero, nil
	}
	value, err := parse(s.fallback)
	if err != nil {
		return zero, fmt.Errorf("default for --%s: %w", s.name, err)
	}
	return value, nil
}
