// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"encoding"
	"flag"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/scalargrad/pkg/support/fsutil"
	"github.com/gomlx/scalargrad/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Params maps hyperparameter names to their values. The value set before parsing is the default, and its
// type is the type the setting is parsed into.
type Params map[string]any

// GetParamOr returns params[name] if it is set and has type T, and defaultValue otherwise.
func GetParamOr[T any](params Params, name string, defaultValue T) T {
	if t, ok := params[name].(T); ok {
		return t
	}
	return defaultValue
}

// ParseSettings updates params with the settings given as "name1=value1;name2=value2;...", usually the
// value of the flag created by CreateSettingsFlag. It returns the names set, in order (a name set twice is
// listed twice).
//
// Every name must already be in params. Values are parsed according to the type of the current value:
//   - int, int64, uint64: Go integer literals, so "1_000_000" is accepted.
//   - float64, bool, string.
//   - []int, []float64, []string: comma-separated lists.
//   - Any type whose pointer implements encoding.TextUnmarshaler, e.g. activations.Type.
//
// A setting "file:<path>" reads settings from the file: one or more per line, with lines starting
// with "#" ignored.
//
// Example:
//
//	params := commandline.Params{"learning_rate": 0.2, "steps": 30}
//	settings := commandline.CreateSettingsFlag(params, "")
//	flag.Parse()
//	paramsSet := must.M1(commandline.ParseSettings(params, *settings))
//	fmt.Println(commandline.SprintModifiedSettings(params, paramsSet))
func ParseSettings(params Params, settings string) ([]string, error) {
	var paramsSet []string
	for _, setting := range strings.Split(settings, ";") {
		names, err := parseSetting(params, strings.TrimSpace(setting))
		if err != nil {
			return paramsSet, err
		}
		paramsSet = append(paramsSet, names...)
	}
	return paramsSet, nil
}

// parseSetting parses one "name=value" or "file:<path>" setting, returning the names set.
func parseSetting(params Params, setting string) ([]string, error) {
	if setting == "" {
		return nil, nil
	}
	if filePath, isFile := strings.CutPrefix(setting, "file:"); isFile {
		return parseSettingsFile(params, filePath)
	}
	name, text, found := strings.Cut(setting, "=")
	if !found {
		return nil, errors.Errorf("invalid setting %q, it should be formatted as \"<name>=<value>\"", setting)
	}
	current, found := params[name]
	if !found {
		return nil, errors.Errorf("unknown parameter %q, known parameters are %v", name, xslices.SortedKeys(params))
	}
	value, err := parseValue(current, text)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value %q for parameter %q (default is %#v)", text, name, current)
	}
	params[name] = value
	return []string{name}, nil
}

func parseSettingsFile(params Params, filePath string) ([]string, error) {
	filePath, err := fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read settings file %q", filePath)
	}
	var paramsSet []string
	for lineNum, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, setting := range strings.Split(line, ";") {
			names, err := parseSetting(params, strings.TrimSpace(setting))
			if err != nil {
				return nil, errors.WithMessagef(err, "%s:%d", filePath, lineNum+1)
			}
			paramsSet = append(paramsSet, names...)
		}
	}
	return paramsSet, nil
}

// parseValue parses text into a value of the same type as current.
func parseValue(current any, text string) (any, error) {
	switch current.(type) {
	case int:
		v, err := strconv.ParseInt(text, 0, strconv.IntSize)
		return int(v), err
	case int64:
		return strconv.ParseInt(text, 0, 64)
	case uint64:
		return strconv.ParseUint(text, 0, 64)
	case float64:
		return strconv.ParseFloat(text, 64)
	case bool:
		return strconv.ParseBool(text)
	case string:
		return text, nil
	case []string:
		return strings.Split(text, ","), nil
	case []int:
		return parseList(text, func(s string) (int, error) {
			v, err := strconv.ParseInt(s, 0, strconv.IntSize)
			return int(v), err
		})
	case []float64:
		return parseList(text, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
	}
	ptr := reflect.New(reflect.TypeOf(current))
	unmarshaler, ok := ptr.Interface().(encoding.TextUnmarshaler)
	if !ok {
		return nil, errors.Errorf("parameters of type %T can't be set", current)
	}
	if err := unmarshaler.UnmarshalText([]byte(text)); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func parseList[T any](text string, parseFn func(string) (T, error)) ([]T, error) {
	parts := strings.Split(text, ",")
	values := make([]T, len(parts))
	for ii, part := range parts {
		v, err := parseFn(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "element #%d of the list", ii)
		}
		values[ii] = v
	}
	return values, nil
}

// CreateSettingsFlag defines a string flag, named flagName or "set" if empty, whose usage lists the
// parameters and their defaults. Parse its value with ParseSettings after flag.Parse.
func CreateSettingsFlag(params Params, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	var usage strings.Builder
	usage.WriteString(`Hyperparameters to set, as a ";"-separated list of "name=value". ` +
		`An entry "file:<path>" reads settings from a file, one or more per line, lines starting with "#" are ignored. ` +
		`Parameters:`)
	for _, name := range xslices.SortedKeys(params) {
		_, _ = fmt.Fprintf(&usage, "\n%q: default value is %v", name, params[name])
	}
	return flag.String(flagName, "", usage.String())
}

// SprintSettings formats all params, one per line, sorted by name.
func SprintSettings(params Params) string {
	return sprintParams(params, xslices.SortedKeys(params))
}

// SprintModifiedSettings formats the params listed in paramsSet (as returned by ParseSettings), one per
// line, sorted by name.
func SprintModifiedSettings(params Params, paramsSet []string) string {
	names := slices.Compact(slices.Sorted(slices.Values(paramsSet)))
	return sprintParams(params, names)
}

func sprintParams(params Params, names []string) string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		if value, found := params[name]; found {
			lines = append(lines, fmt.Sprintf("\t%q: (%T) %v", name, value, value))
		}
	}
	return strings.Join(lines, "\n")
}
