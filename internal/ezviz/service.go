package ezviz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultURL = "https://apiieu.ezvizlife.com"

	endpointPageList   = "/v3/userdevices/v1/resources/pagelist"
	endpointAlarmInfo  = "/v3/alarms/v2/advanced"
	endpointPTZControl = "/v3/devices/%s/ptzControl"
	endpointSoundAlarm = "/v3/devices/%s/alarm/sound"

	pageListFilter = "CLOUD,TIME_PLAN,CONNECTION,SWITCH,STATUS,WIFI,NODISTURB,KMS,P2P,CHANNEL,VTM,DETECTOR,FEATURE,UPGRADE,VIDEO_QUALITY,QOS,PRODUCTS_INFO,FEATURE_INFO"
	pageLimit      = 30

	alarmTimeLayout = "2006-01-02 15:04:05"
	defaultPTZSpeed = 5
)

type Option func(s *service)

// WithClock replaces the clock used to derive seconds since the last alarm.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

func NewService(client *http.Client, baseURL string, opts ...Option) Service {
	s := &service{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) LoadCameras(ctx context.Context) ([]*Camera, error) {
	var cameras []*Camera
	offset := 0
	for {
		query := url.Values{}
		query.Set("groupId", "-1")
		query.Set("limit", strconv.Itoa(pageLimit))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("filter", pageListFilter)

		var list pageList
		err := s.do(ctx, http.MethodGet, endpointPageList, query, nil, &list)
		if err != nil {
			return nil, fmt.Errorf("failed to query device page list: %w", err)
		}
		if err := checkMeta(list.Meta); err != nil {
			return nil, err
		}

		for _, info := range list.DeviceInfos {
			camera := s.flatten(info, &list)
			s.addLastAlarm(ctx, camera)
			cameras = append(cameras, camera)
		}

		if !list.Page.HasNext || len(list.DeviceInfos) == 0 {
			break
		}
		offset += len(list.DeviceInfos)
	}
	return cameras, nil
}

func (s *service) PTZControl(ctx context.Context, command, serial, phase string) error {
	form := url.Values{}
	form.Set("command", command)
	form.Set("action", phase)
	form.Set("channelNo", "1")
	form.Set("speed", strconv.Itoa(defaultPTZSpeed))
	form.Set("uuid", uuid.NewString())
	form.Set("serial", serial)

	var res commandResponse
	err := s.do(ctx, http.MethodPut, fmt.Sprintf(endpointPTZControl, serial), nil, form, &res)
	if err != nil {
		return err
	}
	return checkMeta(res.Meta)
}

func (s *service) SoundAlarm(ctx context.Context, serial string, enable int) (bool, error) {
	form := url.Values{}
	form.Set("enable", strconv.Itoa(enable))

	var res commandResponse
	err := s.do(ctx, http.MethodPut, fmt.Sprintf(endpointSoundAlarm, serial), nil, form, &res)
	if err != nil {
		return false, err
	}
	if err := checkMeta(res.Meta); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) flatten(info deviceInfo, list *pageList) *Camera {
	attributes := map[string]any{
		"name":                 info.Name,
		"status":               info.Status,
		"version":              info.Version,
		"device_category":      info.DeviceCategory,
		"device_sub_category":  info.DeviceSubCategory,
		"supportExt":           parseSupportExt(info.SupportExt),
		"supported_channels":   nil,
		"local_ip":             nil,
		"wan_ip":               nil,
		"battery_level":        nil,
		"PIR_Status":           nil,
		"last_alarm_time":      nil,
		"Seconds_Last_Trigger": nil,
		"last_alarm_pic":       nil,
		"last_alarm_type_code": nil,
		"last_alarm_type_name": nil,
	}

	if channels, ok := list.Channel[info.Serial]; ok {
		attributes["supported_channels"] = len(channels)
	}

	if conn, ok := list.Connection[info.Serial]; ok {
		attributes["local_ip"] = nilIfEmpty(conn.LocalIP)
		attributes["wan_ip"] = nilIfEmpty(conn.NetIP)
	}

	if status, ok := list.Status[info.Serial]; ok {
		if status.PIRStatus != nil {
			attributes["PIR_Status"] = *status.PIRStatus
		}
		if status.Optionals != "" {
			var optionals map[string]any
			if err := json.Unmarshal([]byte(status.Optionals), &optionals); err != nil {
				log.WithError(err).WithField("serial", info.Serial).Debug("failed to parse status optionals")
			} else if power, ok := optionals["powerRemaining"]; ok {
				attributes["battery_level"] = power
			}
		}
	}

	return &Camera{Serial: info.Serial, Attributes: attributes}
}

// addLastAlarm is best effort, cameras without alarm history keep the alarm attributes unset.
func (s *service) addLastAlarm(ctx context.Context, camera *Camera) {
	query := url.Values{}
	query.Set("deviceSerials", camera.Serial)
	query.Set("queryType", "-1")
	query.Set("limit", "1")
	query.Set("stype", "-1")

	var list alarmList
	err := s.do(ctx, http.MethodGet, endpointAlarmInfo, query, nil, &list)
	if err == nil {
		err = checkMeta(list.Meta)
	}
	if err != nil {
		log.WithError(err).WithField("serial", camera.Serial).Warn("failed to query last alarm")
		return
	}
	if len(list.Alarms) == 0 {
		return
	}

	last := list.Alarms[0]
	camera.Attributes["last_alarm_time"] = nilIfEmpty(last.StartTime)
	camera.Attributes["last_alarm_pic"] = nilIfEmpty(last.PicURL)
	camera.Attributes["last_alarm_type_code"] = strconv.Itoa(last.AlarmType)
	camera.Attributes["last_alarm_type_name"] = nilIfEmpty(last.Name)

	at, err := time.ParseInLocation(alarmTimeLayout, last.StartTime, time.Local)
	if err == nil {
		camera.Attributes["Seconds_Last_Trigger"] = int(s.now().Sub(at).Seconds())
	}
}

func (s *service) do(ctx context.Context, method, endpoint string, query, form url.Values, out any) error {
	target := s.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return &HTTPError{Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &HTTPError{Endpoint: endpoint, StatusCode: res.StatusCode}
	}

	err = json.NewDecoder(res.Body).Decode(out)
	if err != nil {
		return &HTTPError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func parseSupportExt(raw string) map[string]string {
	ext := make(map[string]string)
	if raw == "" {
		return ext
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		log.WithError(err).Debug("failed to parse supportExt")
		return ext
	}
	for code, value := range decoded {
		switch v := value.(type) {
		case string:
			ext[code] = v
		default:
			ext[code] = fmt.Sprint(v)
		}
	}
	return ext
}

func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
