// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/spatial/internal/app"
	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/driver"
)

var RootCmd = &cobra.Command{
	Use:   config.DefaultAppName,
	Short: "spatial sensor daemon",
	Long:  "spatial reads a 3-axis accelerometer, gyroscope and magnetometer and serves the readings over MQTT, HTTP and an OLED display",
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().String("driver", "", "device driver ("+strings.Join(driver.Names(), ", ")+")")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

// loadConfig builds the configuration from file, environment and flags,
// flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	v := config.NewViper(path)
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	if err := config.InitGlobal(v, path != ""); err != nil {
		return nil, err
	}
	cfg := config.Get()

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Debug("debug logging enabled")
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"device.driver": "driver",
		"debug":         "debug",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ServeCmdRunE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	log.Infof("starting %s with driver %s", config.DefaultAppName, cfg.Device.Driver)
	return app.Run(ctx, cfg)
}

var ServeCmd = &cobra.Command{
	Use:        "serve",
	SuggestFor: []string{"ru", "ser"},
	Short:      "serve initializes the device and runs the enabled outputs",
	Long: `serve initializes the device and runs the enabled outputs (MQTT, web, display).
The configuration is searched in the following order:
1. path specified in --config flag
2. path defined in the SPATIAL_CONFIG environment variable
3. $HOME/.config/spatial/spatial_config.yaml, /etc/spatial/spatial_config.yaml, current directory
Values are overridden by SPATIAL_* environment variables, then by command line flags.
`,
	Example: `  spatial serve --config=/path/to/config.yaml
  spatial serve --driver=hi229 --debug`,
	RunE: ServeCmdRunE,
}

func ConsoleCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("mqtt", false, "read from the MQTT broker instead of the device")
	cmd.Flags().Duration("interval", 100*time.Millisecond, "print interval")
}

func ConsoleCmdRunE(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %v", interval)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if remote, _ := cmd.Flags().GetBool("mqtt"); remote {
		return app.RunConsoleMQTT(ctx, cfg.MQTT, cmd.OutOrStdout())
	}

	f, err := app.Setup(cfg.Device)
	if err != nil {
		return err
	}
	return errors.Join(app.RunConsole(ctx, f, interval, cmd.OutOrStdout()), f.Close())
}

var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "console prints readings to stdout",
	Long: `console prints readings to stdout.
By default the device is opened locally. With --mqtt the console subscribes to
the configured topic prefix instead and prints what a running producer publishes.
`,
	Example: `  spatial console --driver=sim
  spatial console --mqtt`,
	RunE: ConsoleCmdRunE,
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite without confirmation")
	cmd.Flags().StringP("output", "o", defaultConfigPath(), "output path")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultConfigName + ".yaml"
	}
	return filepath.Join(home, ".config", config.DefaultAppName, config.DefaultConfigName+".yaml")
}

func InitCmdRunE(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
		buf, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(buf)
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")
	if _, err := os.Stat(output); err == nil && !yes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s exists, overwrite? [y/N] ", output)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.TrimSpace(strings.ToLower(answer)); a != "y" && a != "yes" {
			return errors.New("aborted")
		}
	}
	if err := cfg.Dump(output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
	return nil
}

var InitCmd = &cobra.Command{
	Use:        "init",
	SuggestFor: []string{"ini", "in"},
	Short:      "init creates a configuration template",
	Long: `init creates a configuration template.
If --print is present, the configuration is printed to stdout.
Otherwise it is written to --output, by default $HOME/.config/spatial/spatial_config.yaml.
An existing file is only overwritten after confirmation or with --yes.
`,
	Example: `  spatial init --print
  spatial init -o /path/to/config.yaml -y`,
	RunE: InitCmdRunE,
}

func ProbeCmdRunE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	cfg.Device.AttachTimeoutMS = int(timeout / time.Millisecond)

	f, err := app.Setup(cfg.Device)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not found (%v)\n", cfg.Device.Driver, err)
		return err
	}
	defer f.Close()

	r := f.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: attached, session %s\n", r.Driver, r.SessionID)
	return nil
}

var ProbeCmd = &cobra.Command{
	Use:        "probe",
	SuggestFor: []string{"pro", "pr", "prob"},
	Short:      "probe checks that the configured device attaches",
	Long: `probe opens the configured device, waits for it to attach and prints the result.
`,
	Example: `  spatial probe --driver=hi229 --timeout=3s`,
	RunE:    ProbeCmdRunE,
}

func getRootCmd() *cobra.Command {
	commonFlags(ServeCmd)
	RootCmd.AddCommand(ServeCmd)

	commonFlags(ConsoleCmd)
	ConsoleCmdFlags(ConsoleCmd)
	RootCmd.AddCommand(ConsoleCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	commonFlags(ProbeCmd)
	ProbeCmd.Flags().Duration("timeout", 2*time.Second, "attach timeout")
	RootCmd.AddCommand(ProbeCmd)

	return RootCmd
}

func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
