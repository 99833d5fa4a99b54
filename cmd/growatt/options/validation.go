package options

import (
	"net/url"
	"strconv"

	"growattgateway/pkg/protocol/growatt"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

var mqttSchemes = sets.New[string]("tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts")

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if allErrs := ValidateOptions(o); len(allErrs) > 0 {
		errs = append(errs, allErrs.ToAggregate().Errors()...)
	}

	return errs
}

func ValidateOptions(o *Options) field.ErrorList {
	allErrs := field.ErrorList{}

	port, err := strconv.Atoi(o.Port)
	if err != nil {
		allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, "must be a number"))
	} else {
		for _, msg := range validation.IsValidPortNum(port) {
			allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, msg))
		}
	}
	if o.Wait.Duration <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("graceful-timeout"), o.Wait.Duration.String(), "must be greater than 0"))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		allErrs = append(allErrs, field.Required(field.NewPath("certFile"), "cert and key file must be set together"))
	}

	inverters := o.AllInverters()
	if len(inverters) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("inverters"), "set --host or list inverters in the config file"))
	}
	ids := sets.New[string]()
	for i, io := range inverters {
		fldPath := field.NewPath("inverters").Index(i)
		allErrs = append(allErrs, ValidateInverterOptions(io, fldPath)...)
		if ids.Has(io.InstanceID) {
			allErrs = append(allErrs, field.Duplicate(fldPath.Child("instanceId"), io.InstanceID))
		}
		ids.Insert(io.InstanceID)
	}

	allErrs = append(allErrs, ValidateMqttOptions(o.Mqtt, field.NewPath("mqtt"))...)
	return allErrs
}

func ValidateInverterOptions(io InverterOptions, fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	if len(io.Host) == 0 {
		allErrs = append(allErrs, field.Required(fldPath.Child("host"), ""))
	}
	for _, msg := range validation.IsValidPortNum(io.Port) {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("port"), io.Port, msg))
	}
	if io.SlaveId == 0 || io.SlaveId > 247 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("slaveId"), io.SlaveId, "must be between 1 and 247"))
	}
	if io.Timeout.Duration <= 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("timeout"), io.Timeout.Duration.String(), "must be greater than 0"))
	}
	if io.PollInterval.Duration <= 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("pollInterval"), io.PollInterval.Duration.String(), "must be greater than 0"))
	}
	if len(io.RegistersFile) > 0 {
		if _, err := growatt.LoadCatalogFile(io.RegistersFile); err != nil {
			allErrs = append(allErrs, field.Invalid(fldPath.Child("registersFile"), io.RegistersFile, err.Error()))
		}
	}
	return allErrs
}

func ValidateMqttOptions(mo MqttOptions, fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	if len(mo.Broker) == 0 {
		return allErrs
	}
	u, err := url.Parse(mo.Broker)
	if err != nil {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("broker"), mo.Broker, err.Error()))
	} else if !mqttSchemes.Has(u.Scheme) {
		allErrs = append(allErrs, field.NotSupported(fldPath.Child("broker"), u.Scheme, sets.List(mqttSchemes)))
	}
	if len(mo.Topic) == 0 {
		allErrs = append(allErrs, field.Required(fldPath.Child("topic"), ""))
	}
	if len(mo.DiscoveryPrefix) == 0 {
		allErrs = append(allErrs, field.Required(fldPath.Child("discoveryPrefix"), ""))
	}
	if mo.Qos < 0 || mo.Qos > 2 {
		allErrs = append(allErrs, field.NotSupported(fldPath.Child("qos"), mo.Qos, []string{"0", "1", "2"}))
	}
	return allErrs
}
