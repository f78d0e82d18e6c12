package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// opt is a single command-line option that can also be set through a
// PLANOPT_ environment variable.
type opt struct {
	destP interface{} // pointer to the destination
	flag  string
	dflt  interface{}
	desc  string
}

func newOpt(destP interface{}, flag string, dflt interface{}, desc string) opt {
	return opt{destP: destP, flag: flag, dflt: dflt, desc: desc}
}

// newViper returns a viper instance reading PLANOPT_ variables, with "-" in
// flag names normalized to "_".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PLANOPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// bindOptions adds opts to cmd as persistent flags and registers them with v.
func bindOptions(v *viper.Viper, cmd *cobra.Command, opts []opt) {
	flags := cmd.PersistentFlags()
	for _, o := range opts {
		switch destP := o.destP.(type) {
		case *string:
			var d string
			if o.dflt != nil {
				d = o.dflt.(string)
			}
			flags.StringVar(destP, o.flag, d, o.desc)
		case *int:
			var d int
			if o.dflt != nil {
				d = o.dflt.(int)
			}
			flags.IntVar(destP, o.flag, d, o.desc)
		case *time.Duration:
			var d time.Duration
			if o.dflt != nil {
				d = o.dflt.(time.Duration)
			}
			flags.DurationVar(destP, o.flag, d, o.desc)
		case *[]string:
			var d []string
			if o.dflt != nil {
				d = o.dflt.([]string)
			}
			flags.StringSliceVar(destP, o.flag, d, o.desc)
		default:
			panic(fmt.Errorf("unknown destination type %T", o.destP))
		}
		if err := v.BindPFlag(o.flag, flags.Lookup(o.flag)); err != nil {
			panic(err)
		}
	}
}
