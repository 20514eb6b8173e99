package mqtt

// FakePublisher records what would have gone to the broker.
// Payloads are formatted exactly as the real publisher formats them, so
// tests can assert on the wire JSON as well as the typed values.
type FakePublisher struct {
	Telemetry []Telemetry
	Payloads  [][]byte // telemetry JSON, parallel to Telemetry

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte // system JSON, parallel to SystemEvents

	// Retained holds the last retained payload per topic, like a broker would.
	Retained map[string][]byte

	PublishError       error // returned by PublishTelemetry
	PublishSystemError error // returned by PublishSystem

	Connected bool
	Closed    bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Retained: map[string][]byte{}}
}

func (f *FakePublisher) PublishTelemetry(t Telemetry) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(t)
	if err != nil {
		return err
	}
	f.Telemetry = append(f.Telemetry, t)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	if event.Retained {
		if f.Retained == nil {
			f.Retained = map[string][]byte{}
		}
		f.Retained[TopicSystem] = payload
	}
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

// EventNames lists the recorded system event names in publish order.
func (f *FakePublisher) EventNames() []string {
	var names []string
	for _, e := range f.SystemEvents {
		names = append(names, e.Event)
	}
	return names
}

// Reset returns f to its freshly constructed state.
func (f *FakePublisher) Reset() {
	*f = *NewFakePublisher()
}
