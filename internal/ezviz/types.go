package ezviz

import (
	"context"
)

const (
	PhaseStart = "START"
	PhaseStop  = "STOP"
)

const (
	DirectionUp    = "UP"
	DirectionDown  = "DOWN"
	DirectionLeft  = "LEFT"
	DirectionRight = "RIGHT"
)

// Capability codes reported in a device's supportExt map.
const (
	SupportActiveDefense = "96"
	SupportPtz           = "154"
)

const (
	SoundAlarmOff = 1
	SoundAlarmOn  = 2
)

type Service interface {
	LoadCameras(ctx context.Context) ([]*Camera, error)
	PTZControl(ctx context.Context, command, serial, phase string) error
	SoundAlarm(ctx context.Context, serial string, enable int) (bool, error)
}

// Camera is a flattened view of one device across the page list sections.
type Camera struct {
	Serial     string
	Attributes map[string]any
}

type meta struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo any    `json:"moreInfo"`
}

type page struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Total   int  `json:"totalResults"`
	HasNext bool `json:"hasNext"`
}

type deviceInfo struct {
	Serial            string `json:"deviceSerial"`
	Name              string `json:"name"`
	Status            int    `json:"status"`
	Version           string `json:"version"`
	DeviceCategory    string `json:"deviceCategory"`
	DeviceSubCategory string `json:"deviceSubCategory"`
	SupportExt        string `json:"supportExt"`
}

type deviceStatus struct {
	Optionals string `json:"optionals"`
	PIRStatus *int   `json:"pirStatus"`
}

type deviceConnection struct {
	LocalIP string `json:"localIp"`
	NetIP   string `json:"netIp"`
}

type deviceChannel struct {
	ChannelNo int `json:"channelNo"`
}

type pageList struct {
	Meta        meta                        `json:"meta"`
	Page        page                        `json:"page"`
	DeviceInfos []deviceInfo                `json:"deviceInfos"`
	Status      map[string]deviceStatus     `json:"STATUS"`
	Connection  map[string]deviceConnection `json:"CONNECTION"`
	Channel     map[string][]deviceChannel  `json:"CHANNEL"`
}

type alarm struct {
	StartTime string `json:"alarmStartTimeStr"`
	PicURL    string `json:"picUrl"`
	AlarmType int    `json:"alarmType"`
	Name      string `json:"sampleName"`
}

type alarmList struct {
	Meta   meta    `json:"meta"`
	Alarms []alarm `json:"alarms"`
}

type commandResponse struct {
	Meta meta `json:"meta"`
}
