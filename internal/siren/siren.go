package siren

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
	"github.com/bilbercode/ezviz-bridge/internal/state"
)

const (
	Name = "Siren"
	Key  = "siren"

	// OffDelay is hard coded in the camera firmware, the siren stops by itself after it.
	OffDelay = 60 * time.Second

	StateOn  = "on"
	StateOff = "off"

	disabled = "0"
)

type Siren struct {
	entity.Base
	uniqueID string
	store    state.Store
	offDelay time.Duration

	mu       sync.Mutex
	on       bool
	offTimer *time.Timer
	onChange func(*Siren)
}

// Setup creates a siren for every camera whose active defense flag is present and not "0".
func Setup(c entity.Coordinator, store state.Store) ([]*Siren, error) {
	data := c.Data()
	var sirens []*Siren
	for _, serial := range data.Serials() {
		attributes, _ := data.Device(serial)
		ext, err := entity.SupportExt(serial, attributes)
		if err != nil {
			return nil, err
		}
		if flag, ok := ext[ezviz.SupportActiveDefense]; !ok || flag == disabled {
			continue
		}
		sirens = append(sirens, New(c, serial, store))
	}
	return sirens, nil
}

func New(c entity.Coordinator, serial string, store state.Store) *Siren {
	s := &Siren{
		Base:     entity.NewBase(c, serial),
		uniqueID: serial + "_" + Name,
		store:    store,
		offDelay: OffDelay,
	}
	s.restore()
	return s
}

func (s *Siren) UniqueID() string {
	return s.uniqueID
}

func (s *Siren) Name() string {
	return Name
}

func (s *Siren) Key() string {
	return Key
}

func (s *Siren) Platform() entity.Platform {
	return entity.PlatformSiren
}

func (s *Siren) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// OnChange registers the callback run whenever the siren state is written.
func (s *Siren) OnChange(f func(*Siren)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = f
}

func (s *Siren) TurnOn(ctx context.Context) error {
	success, err := s.Coordinator().Client().SoundAlarm(ctx, s.Serial(), ezviz.SoundAlarmOn)
	if err != nil {
		return s.wrap("Failed to turn siren on for", err)
	}

	if success {
		s.mu.Lock()
		s.on = true
		if s.offTimer != nil {
			s.offTimer.Stop()
		}
		s.offTimer = time.AfterFunc(s.offDelay, s.offDelayElapsed)
		s.mu.Unlock()
	}
	s.writeState()
	return nil
}

func (s *Siren) TurnOff(ctx context.Context) error {
	success, err := s.Coordinator().Client().SoundAlarm(ctx, s.Serial(), ezviz.SoundAlarmOff)
	if err != nil {
		return s.wrap("Failed to turn siren off for", err)
	}

	if success {
		s.mu.Lock()
		s.on = false
		s.mu.Unlock()
	}
	s.writeState()
	return nil
}

func (s *Siren) offDelayElapsed() {
	s.mu.Lock()
	s.on = false
	s.offTimer = nil
	s.mu.Unlock()
	s.writeState()
}

func (s *Siren) wrap(message string, err error) error {
	var httpErr *ezviz.HTTPError
	var apiErr *ezviz.APIError
	if errors.As(err, &httpErr) || errors.As(err, &apiErr) {
		return &entity.ActionError{Message: message, Entity: s.FullName(s.Name()), Err: err}
	}
	return err
}

func (s *Siren) restore() {
	if s.store == nil {
		return
	}
	record, err := s.store.Get(s.uniqueID)
	switch {
	case errors.Is(err, state.ErrNotFound):
		return
	case err != nil:
		log.WithError(err).WithField("entity", s.uniqueID).Warn("failed to restore siren state")
		return
	}
	s.on = record.State == StateOn
}

func (s *Siren) writeState() {
	s.mu.Lock()
	current := StateOff
	if s.on {
		current = StateOn
	}
	onChange := s.onChange
	s.mu.Unlock()

	if s.store != nil {
		err := s.store.Put(&state.Record{ID: s.uniqueID, State: current})
		if err != nil {
			log.WithError(err).WithField("entity", s.uniqueID).Warn("failed to persist siren state")
		}
	}
	if onChange != nil {
		onChange(s)
	}
}
