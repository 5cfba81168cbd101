package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bind makes an explicitly set flag override key. Unset flags leave the
// config file, environment and defaults in charge.
func bind(v *viper.Viper, f *pflag.Flag, key string) {
	if err := v.BindPFlag(key, f); err != nil {
		panic("binding flag " + f.Name + ": " + err.Error())
	}
}
