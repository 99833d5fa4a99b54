package growatt

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
)

type WordRole string

const (
	WordSingle WordRole = "single"
	WordHigh   WordRole = "high"
	WordLow    WordRole = "low"
)

const DefaultHighMarker = "高位"

// RegisterSpec describes one input register. A 32 bit quantity is two specs,
// the high half at A and the low half at A+1.
type RegisterSpec struct {
	Name        string   `yaml:"name" json:"name"`                                   // 名称
	Address     uint16   `yaml:"address" json:"address"`                             // 寄存器地址
	Word        WordRole `yaml:"word,omitempty" json:"word,omitempty"`               // 高位/低位, 为空时按名称判断
	Scale       float64  `yaml:"scale,omitempty" json:"scale,omitempty"`             // 比率, 0 表示不缩放
	Unit        string   `yaml:"unit,omitempty" json:"unit,omitempty"`               // 单位
	DeviceClass string   `yaml:"deviceClass,omitempty" json:"deviceClass,omitempty"` // 设备类别
	StateClass  string   `yaml:"stateClass,omitempty" json:"stateClass,omitempty"`   // 状态类别
}

func (r RegisterSpec) HasScale() bool {
	return r.Scale != 0
}

type Catalog struct {
	Registers           []RegisterSpec    `yaml:"registers" json:"registers"`
	StatusAddress       *uint16           `yaml:"statusAddress,omitempty" json:"statusAddress,omitempty"`
	StatusMap           map[uint16]string `yaml:"statusMap,omitempty" json:"statusMap,omitempty"`
	BatteryPowerAddress *uint16           `yaml:"batteryPowerAddress,omitempty" json:"batteryPowerAddress,omitempty"`
	HighMarker          string            `yaml:"highMarker,omitempty" json:"highMarker,omitempty"`
}

func (c *Catalog) marker() string {
	if len(c.HighMarker) == 0 {
		return DefaultHighMarker
	}
	return c.HighMarker
}

// Role returns the explicit word role, or infers it from the high marker in
// the register name.
func (c *Catalog) Role(r RegisterSpec) WordRole {
	if len(r.Word) > 0 {
		return r.Word
	}
	if strings.Contains(r.Name, c.marker()) {
		return WordHigh
	}
	return WordSingle
}

// DisplayName strips the high marker from the name of a 32 bit quantity.
func (c *Catalog) DisplayName(high RegisterSpec) string {
	return strings.TrimSpace(strings.ReplaceAll(high.Name, c.marker(), ""))
}

func (c *Catalog) IsStatus(address uint16) bool {
	return c.StatusAddress != nil && *c.StatusAddress == address
}

func (c *Catalog) IsBatteryPower(address uint16) bool {
	return c.BatteryPowerAddress != nil && *c.BatteryPowerAddress == address
}

func (c *Catalog) Validate() field.ErrorList {
	allErrs := field.ErrorList{}
	fldPath := field.NewPath("registers")
	if len(c.Registers) == 0 {
		allErrs = append(allErrs, field.Required(fldPath, "at least one register is required"))
	}

	names := sets.New[string]()
	for i, r := range c.Registers {
		idxPath := fldPath.Index(i)
		if len(strings.TrimSpace(r.Name)) == 0 {
			allErrs = append(allErrs, field.Required(idxPath.Child("name"), ""))
		} else if names.Has(r.Name) {
			allErrs = append(allErrs, field.Duplicate(idxPath.Child("name"), r.Name))
		}
		names.Insert(r.Name)

		switch r.Word {
		case "", WordSingle, WordHigh, WordLow:
		default:
			allErrs = append(allErrs, field.NotSupported(idxPath.Child("word"), r.Word, []string{string(WordSingle), string(WordHigh), string(WordLow)}))
		}
	}
	return allErrs
}

// LoadCatalogFile reads a yaml register catalog. Fields left out of the file
// keep the values of the built-in Growatt catalog, registers are replaced.
func LoadCatalogFile(path string) (*Catalog, error) {
	file, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		klog.ErrorS(err, "Failed to read register catalog", "file", file)
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var in Catalog
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal register catalog")
	}

	c := DefaultCatalog()
	c.Registers = in.Registers
	if in.StatusAddress != nil {
		c.StatusAddress = in.StatusAddress
	}
	if in.StatusMap != nil {
		c.StatusMap = in.StatusMap
	}
	if in.BatteryPowerAddress != nil {
		c.BatteryPowerAddress = in.BatteryPowerAddress
	}
	if len(in.HighMarker) > 0 {
		c.HighMarker = in.HighMarker
	}

	if errs := c.Validate(); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	return c, nil
}
