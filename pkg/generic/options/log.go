package options

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
)

// visibleLogFlags are shown in --help, the other klog flags stay usable but
// hidden.
var visibleLogFlags = sets.New[string]("v", "vmodule", "logging-format")

const (
	defaultLogFormat    = "text"
	defaultLogVerbosity = 2
)

type LoggingConfiguration struct {
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		config.LoggingConfiguration{
			Format:    defaultLogFormat,
			Verbosity: defaultLogVerbosity,
		},
	}
}

// ValidateAndApply installs the configured format and verbosity on klog.
func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

// loggingFile is the part of the logging configuration kept in the config
// file.
type loggingFile struct {
	Format    string                      `json:"format"`
	Verbosity config.VerbosityLevel       `json:"verbosity"`
	VModule   config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
		VModule:   l.VModule,
	})
}

func (l *LoggingConfiguration) UnmarshalJSON(data []byte) error {
	in := loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	l.Format = in.Format
	l.Verbosity = in.Verbosity
	l.VModule = in.VModule
	return nil
}

func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		f.Hidden = !visibleLogFlags.Has(f.Name)
		if f.Name == "logging-format" {
			f.Usage = fmt.Sprintf("Log format, one of %q.", strings.Join(registry.LogRegistry.List(), ", "))
		}
	})
	fs.AddFlagSet(logsFs)
}
