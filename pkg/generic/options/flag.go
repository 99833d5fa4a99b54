package options

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	flagConfig        = "config"
	flagHelp          = "help"
	flagDefaultConfig = "default-config"
)

// Optioner is implemented by the command options. AddFlags must bind every
// field that can also be set from the config file.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

type BaseOptions struct {
	ConfigFile string               `json:"-"`
	Logging    LoggingConfiguration `json:"logging"`
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

// AddBaseFlags adds --config, the logging flags, --help and --default-config.
func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.bindFileFlags(fs)
	fs.BoolP(flagHelp, "h", false, fmt.Sprintf("Show help for %s", cmd.Name()))
	fs.Bool(flagDefaultConfig, false, "Print the default configuration as YAML and exit")
	setUsage(cmd, fs)
}

// bindFileFlags binds the flags that are re-applied over the config file.
func (bo *BaseOptions) bindFileFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, flagConfig, "c", bo.ConfigFile, "YAML config file with the gateway, inverter and MQTT settings. Flags given on the command line take precedence over the file")
	bo.Logging.BindLoggingFlags(fs)
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if boolFlag(fs, flagHelp) {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	if !boolFlag(fs, flagDefaultConfig) {
		return
	}
	if err := WriteDefaultConfig(os.Stdout, config); err != nil {
		klog.ErrorS(err, "Failed to print default config")
		os.Exit(1)
	}
	os.Exit(0)
}

// WriteDefaultConfig renders config as a commented YAML document that can be
// passed back with --config.
func WriteDefaultConfig(w io.Writer, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}
	_, err = fmt.Fprintf(w, "# growatt gateway default configuration, pass a copy of it with --%s.\n"+
		"# Further inverters go into the inverters list, each entry takes the keys of inverter.\n\n%s", flagConfig, data)
	return err
}

func boolFlag(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		klog.ErrorS(err, "Flag is not registered as bool", "flag", name)
		os.Exit(1)
	}
	return v
}

func setUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	// cobra would otherwise print the global flag set
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the file named by --config into o and then
// parses args again so the command line wins over the file.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	path := o.GetBaseOptions().ConfigFile
	if len(path) == 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	// unknown keys fail so a misspelled option is not dropped
	if err := yaml.UnmarshalStrict(data, o); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	klog.V(2).InfoS("Loaded config file", "file", path)

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o.AddFlags(fs)
	o.GetBaseOptions().bindFileFlags(fs)
	// help and default-config were handled before the file was read
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "apply command line over config file")
	}
	return nil
}
