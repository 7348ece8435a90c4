package sensor

const (
	unitPercentage     = "%"
	deviceClassBattery = "battery"
)

type Description struct {
	Key              string
	Name             string
	TranslationKey   string
	Unit             string
	DeviceClass      string
	EnabledByDefault bool
}

// Descriptions lists every camera attribute exposed as a sensor, in registration order.
var Descriptions = []Description{
	{
		Key:              "battery_level",
		Name:             "Battery",
		TranslationKey:   "battery_level",
		Unit:             unitPercentage,
		DeviceClass:      deviceClassBattery,
		EnabledByDefault: true,
	},
	{Key: "last_alarm_time", Name: "Last alarm time", TranslationKey: "last_alarm_time", EnabledByDefault: true},
	{Key: "Seconds_Last_Trigger", Name: "Seconds since last alarm", TranslationKey: "seconds_last_trigger"},
	{Key: "last_alarm_pic", Name: "Last alarm picture url", TranslationKey: "last_alarm_pic", EnabledByDefault: true},
	{Key: "supported_channels", Name: "Supported channels", TranslationKey: "supported_channels", EnabledByDefault: true},
	{Key: "local_ip", Name: "Local IP", TranslationKey: "local_ip", EnabledByDefault: true},
	{Key: "wan_ip", Name: "WAN IP", TranslationKey: "wan_ip", EnabledByDefault: true},
	{Key: "PIR_Status", Name: "PIR Status", TranslationKey: "pir_status", EnabledByDefault: true},
	{Key: "last_alarm_type_code", Name: "Last alarm type code", TranslationKey: "last_alarm_type_code", EnabledByDefault: true},
	{Key: "last_alarm_type_name", Name: "Last alarm type name", TranslationKey: "last_alarm_type_name", EnabledByDefault: true},
}
