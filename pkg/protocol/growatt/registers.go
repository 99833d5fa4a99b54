package growatt

const (
	StatusRegisterAddress       uint16 = 0
	BatteryPowerRegisterAddress uint16 = 1009
)

// SystemStatusMap 系统状态码
var SystemStatusMap = map[uint16]string{
	0: "等待",
	1: "正常",
	2: "自检",
	3: "故障",
	4: "升级中",
	5: "光伏电池在线",
	6: "电池在线",
	7: "光伏离网",
	8: "电池离网",
}

const (
	classPower       = "power"
	classEnergy      = "energy"
	classVoltage     = "voltage"
	classCurrent     = "current"
	classFrequency   = "frequency"
	classTemperature = "temperature"
	classBattery     = "battery"
	classDuration    = "duration"
	classEnum        = "enum"

	stateMeasurement     = "measurement"
	stateTotalIncreasing = "total_increasing"
)

// growattRegisters Growatt 输入寄存器 (功能码04)
var growattRegisters = []RegisterSpec{
	{Name: "系统状态", Address: 0, DeviceClass: classEnum},
	{Name: "光伏总功率 高位", Address: 1, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "光伏总功率 低位", Address: 2, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "PV1电压", Address: 3, Scale: 0.1, Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement},
	{Name: "PV1电流", Address: 4, Scale: 0.1, Unit: "A", DeviceClass: classCurrent, StateClass: stateMeasurement},
	{Name: "PV1功率 高位", Address: 5, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "PV1功率 低位", Address: 6, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "PV2电压", Address: 7, Scale: 0.1, Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement},
	{Name: "PV2电流", Address: 8, Scale: 0.1, Unit: "A", DeviceClass: classCurrent, StateClass: stateMeasurement},
	{Name: "PV2功率 高位", Address: 9, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "PV2功率 低位", Address: 10, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "输出功率 高位", Address: 35, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "输出功率 低位", Address: 36, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "电网频率", Address: 37, Scale: 0.01, Unit: "Hz", DeviceClass: classFrequency, StateClass: stateMeasurement},
	{Name: "电网电压", Address: 38, Scale: 0.1, Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement},
	{Name: "输出电流", Address: 39, Scale: 0.1, Unit: "A", DeviceClass: classCurrent, StateClass: stateMeasurement},
	{Name: "今日发电量 高位", Address: 53, Scale: 0.1, Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing},
	{Name: "今日发电量 低位", Address: 54, Scale: 0.1, Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing},
	{Name: "累计发电量 高位", Address: 55, Scale: 0.1, Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing},
	{Name: "累计发电量 低位", Address: 56, Scale: 0.1, Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing},
	{Name: "累计运行时间 高位", Address: 57, Scale: 0.5, Unit: "s", DeviceClass: classDuration, StateClass: stateTotalIncreasing},
	{Name: "累计运行时间 低位", Address: 58, Scale: 0.5, Unit: "s", DeviceClass: classDuration, StateClass: stateTotalIncreasing},
	{Name: "逆变器温度", Address: 93, Scale: 0.1, Unit: "°C", DeviceClass: classTemperature, StateClass: stateMeasurement},
	{Name: "电池充放电功率 高位", Address: 1009, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "电池充放电功率 低位", Address: 1010, Scale: 0.1, Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement},
	{Name: "电池电压", Address: 1013, Scale: 0.1, Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement},
	{Name: "电池SOC", Address: 1014, Unit: "%", DeviceClass: classBattery, StateClass: stateMeasurement},
}

// DefaultCatalog returns a fresh copy of the built-in Growatt catalog.
func DefaultCatalog() *Catalog {
	registers := make([]RegisterSpec, len(growattRegisters))
	copy(registers, growattRegisters)
	statusMap := make(map[uint16]string, len(SystemStatusMap))
	for k, v := range SystemStatusMap {
		statusMap[k] = v
	}
	status := StatusRegisterAddress
	battery := BatteryPowerRegisterAddress
	return &Catalog{
		Registers:           registers,
		StatusAddress:       &status,
		StatusMap:           statusMap,
		BatteryPowerAddress: &battery,
		HighMarker:          DefaultHighMarker,
	}
}
