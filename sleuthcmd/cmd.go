/*
Copyright © 2024 the sleuth authors.
This file is part of sleuth.

sleuth is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sleuth is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sleuth.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package sleuthcmd is the CLI surface: cobra commands for the four
// processing modes, a viper-backed options table mirroring the
// teacher's inmaputil package, and scenario/input loading that wires
// sleuthio and engine together.
package sleuthcmd

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds the resolved configuration: command-line flags, a config
// file (--config), and SLEUTH_-prefixed environment variables, in that
// precedence order.
var Cfg *viper.Viper

// Log is the process-wide structured logger.
var Log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "config specifies a configuration file overriding these flags' defaults.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "workers",
			usage:      "workers is the number of goroutines to fan the sweep out across.",
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "rank",
			usage:      "rank is this process's index in a multi-process sweep split (0-based).",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "worldsize",
			usage:      "worldsize is the total number of cooperating processes splitting the sweep.",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "bucket",
			usage:      "bucket is the gocloud.dev blob bucket URL inputs are fetched from (file://, s3://, gs://).",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "checkpoint",
			usage:      "checkpoint is the restart-checkpoint file path, read by 'restart' and written periodically by 'calibrate'/'test'.",
			defaultVal: "restart_file.data",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()
	Cfg.SetEnvPrefix("SLEUTH")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				set.Bool(option.name, v, option.usage)
			default:
				panic("sleuth: sleuthcmd: unsupported option default type")
			}
			if err := Cfg.BindPFlag(option.name, set.Lookup(option.name)); err != nil {
				panic(err)
			}
		}
	}
}

func init() {
	Root.AddCommand(calibrateCmd)
	Root.AddCommand(testCmd)
	Root.AddCommand(predictCmd)
	Root.AddCommand(restartCmd)
}

// setConfig reads --config's file into Cfg, if set, and runs from
// PersistentPreRunE so every subcommand sees it before RunE fires.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sleuth: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// Root is the sleuth CLI's top-level command.
var Root = &cobra.Command{
	Use:   "sleuth",
	Short: "An urban-growth cellular-automaton simulator.",
	Long: `sleuth calibrates, tests, and predicts urban growth using a
self-modifying cellular-automaton model. Use the subcommands below to
choose a processing mode; each takes a scenario file as its one
positional argument.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate scenario_file",
	Short: "Sweep the five coefficients and rank tuples by fit to observed history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, args[0], modeCalibrate)
	},
	DisableAutoGenTag: true,
}

var testCmd = &cobra.Command{
	Use:   "test scenario_file",
	Short: "Run only the first tuple of the calibration sweep, with diagnostic images.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, args[0], modeTest)
	},
	DisableAutoGenTag: true,
}

var predictCmd = &cobra.Command{
	Use:   "predict scenario_file",
	Short: "Run a single forward projection with the best-fit coefficients.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, args[0], modePredict)
	},
	DisableAutoGenTag: true,
}

var restartCmd = &cobra.Command{
	Use:   "restart scenario_file",
	Short: "Re-run the sweep tuple recorded in --checkpoint; later tuples are not run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, args[0], modeRestart)
	},
	DisableAutoGenTag: true,
}

// Execute runs the root command, returning its exit code.
func Execute() int {
	if err := Root.Execute(); err != nil {
		Log.WithError(err).Error("sleuth: fatal")
		return 1
	}
	return 0
}
