package utils

import (
	"os"
	"strings"

	"github.com/ansel1/merry"
)

type Env struct {
	Val string
}

func (e *Env) Set(name string) error {
	if name != "dev" && name != "prod" {
		return merry.New("must be 'dev' or 'prod'")
	}
	e.Val = name
	return nil
}

func (e Env) String() string {
	return e.Val
}

func (e Env) Type() string {
	return "string"
}

func (e Env) IsDev() bool {
	return e.Val == "dev"
}

func (e Env) IsProd() bool {
	return e.Val == "prod"
}

// OptionValue validates and stores a single value from a set of allowed options
type OptionValue[T any] struct {
	Options []T
	ToStr   func(T) string
	Value   *T
}

func (o *OptionValue[T]) Set(value string) error {
	for i, option := range o.Options {
		if o.ToStr(option) == value {
			o.Value = &o.Options[i]
			return nil
		}
	}
	return merry.Errorf("must be one of: %s", o.JoinStrings(", "))
}

func (o OptionValue[T]) String() string {
	if o.Value == nil {
		return ""
	}
	return o.ToStr(*o.Value)
}

func (o OptionValue[T]) JoinStrings(sep string) string {
	optionStrs := make([]string, len(o.Options))
	for i, option := range o.Options {
		optionStrs[i] = o.ToStr(option)
	}
	return strings.Join(optionStrs, sep)
}

func MakeConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", merry.Wrap(err)
	}
	dir = dir + "/wims_connector"
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", merry.Wrap(err)
	}
	return dir, nil
}
