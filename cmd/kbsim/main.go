package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/sim"
)

var rootCmd = &cobra.Command{
	Use:   "kbsim",
	Short: "Simulates a split keyboard with its host link",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog flags are already parsed by cobra.
		flag.CommandLine.Parse(nil)
		if conf, _ := cmd.Flags().GetString("config"); conf != "" {
			viper.SetConfigFile(conf)
			if err := viper.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "read config %s", conf)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := sim.NewConfig()
		if err := viper.Unmarshal(conf); err != nil {
			return err
		}
		glog.Infof("config: %+v", *conf)
		return fx.NewRunner().HandleSignals().Go(conf.New()).Wait()
	},
}

func init() {
	def := sim.Default()
	flags := rootCmd.Flags()
	flags.String("listen", def.Listen, "HTTP address serving /metrics and /host")
	flags.Duration("typing-interval", def.TypingInterval, "Average time between keypresses, 0 disables typing")
	flags.Duration("loop-interval", def.LoopInterval, "Tick of the half loops")
	flags.Float64("drop-rate", def.DropRate, "Probability a frame between the halves is dropped")
	flags.Float64("corrupt-rate", def.CorruptRate, "Probability a frame between the halves is corrupted")
	flags.Int64("seed", def.Seed, "Seed of typists and faults")
	flags.String("mqtt", def.MQTTURL, "MQTT broker URL for telemetry, empty disables it")
	flags.String("host-id", def.HostID, "Host ID in telemetry topics, defaults to the machine id")
	flags.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	viper.SetEnvPrefix("KBSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
