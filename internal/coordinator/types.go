package coordinator

// Attributes is the per-device state as returned by the cloud, keyed by attribute name.
type Attributes map[string]any

// Snapshot is an immutable, ordered view of every device's attributes at the end of a refresh.
type Snapshot struct {
	serials []string
	devices map[string]Attributes
}

func NewSnapshot() *Snapshot {
	return &Snapshot{devices: make(map[string]Attributes)}
}

// Set adds or replaces a device. Only used while building a snapshot.
func (s *Snapshot) Set(serial string, attributes Attributes) *Snapshot {
	if _, ok := s.devices[serial]; !ok {
		s.serials = append(s.serials, serial)
	}
	s.devices[serial] = attributes
	return s
}

// Serials returns the device serials in insertion order.
func (s *Snapshot) Serials() []string {
	out := make([]string, len(s.serials))
	copy(out, s.serials)
	return out
}

func (s *Snapshot) Device(serial string) (Attributes, bool) {
	attributes, ok := s.devices[serial]
	return attributes, ok
}

func (s *Snapshot) Len() int {
	return len(s.serials)
}
