package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/mrs/mrsjson"
)

type mockHandle struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
	addr     string
}

func (m *mockHandle) Send(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return assert.AnError
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.frames = append(m.frames, buf)
	return nil
}

func (m *mockHandle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockHandle) RemoteAddr() string { return m.addr }

func (m *mockHandle) kinds(t *testing.T) []mrs.MessageKind {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	codec := mrsjson.New()
	var kinds []mrs.MessageKind
	for _, frame := range m.frames {
		msg, err := codec.Decode(frame)
		require.NoError(t, err)
		kinds = append(kinds, msg.Kind())
	}
	return kinds
}

func (m *mockHandle) lastMessage(t *testing.T) mrs.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.frames)
	msg, err := mrsjson.New().Decode(m.frames[len(m.frames)-1])
	require.NoError(t, err)
	return msg
}

func (m *mockHandle) frameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *mockHandle) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func testConfig() *mrs.DeviceConfiguration {
	return &mrs.DeviceConfiguration{
		MessageType:             mrs.MessageTypeReport,
		DeviceIdentification:    mrs.DeviceIdentification{DeviceName: "perimeter-radar", DeviceType: "Radar"},
		NotificationServiceIP:   "127.0.0.1",
		NotificationServicePort: "8870",
		SensorConfigurations: []mrs.SensorConfiguration{
			{SensorIdentification: mrs.SensorIdentification{SensorName: "antenna-1", SensorType: "Radar"}},
		},
	}
}

func testStatus() *mrs.DeviceStatusReport {
	return &mrs.DeviceStatusReport{
		DeviceIdentification: mrs.DeviceIdentification{DeviceName: "perimeter-radar"},
		Sensors: []mrs.SensorStatusReport{
			{
				SensorIdentification: mrs.SensorIdentification{SensorName: "antenna-1"},
				CommunicationState:   mrs.BITOK,
				PowerState:           mrs.FlagYes,
				TechnicalState:       mrs.BITOK,
				Detail:               []byte(`{"rpm":12}`),
				Picture:              []byte(`{"frame":"..."}`),
			},
		},
	}
}

func newTestAdapter(t *testing.T, mutate func(*Options)) *Adapter {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(testConfig(), testStatus(), opts)
	require.NoError(t, err)
	return a
}

func encode(t *testing.T, msg mrs.Message) []byte {
	t.Helper()
	data, err := mrsjson.New().Encode(msg)
	require.NoError(t, err)
	return data
}

func configRequest(identity string) *mrs.DeviceConfiguration {
	return &mrs.DeviceConfiguration{
		MessageType:             mrs.MessageTypeRequest,
		RequestorIdentification: identity,
		NotificationServiceIP:   "10.0.0.5",
		NotificationServicePort: "9000",
		DeviceIdentification:    mrs.DeviceIdentification{DeviceName: identity},
	}
}

func subscription(identity string, cats ...mrs.SubscriptionType) *mrs.DeviceSubscription {
	return &mrs.DeviceSubscription{RequestorIdentification: identity, SubscriptionTypes: cats}
}

func TestNewRejectsMissingAggregates(t *testing.T) {
	_, err := New(nil, testStatus(), DefaultOptions())
	assert.Error(t, err)
	_, err = New(testConfig(), nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.HeartbeatInterval = 0
	_, err = New(testConfig(), testStatus(), opts)
	assert.Error(t, err)
}

func TestConfigurationRegistersAndReplies(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{addr: "10.0.0.5:9000"}

	a.HandleMessage(h, h.addr, encode(t, configRequest("C2-A")))

	require.Len(t, a.Sessions(), 1)
	sess := a.Sessions()[0]
	assert.Equal(t, "C2-A", sess.Identity)
	assert.Equal(t, "10.0.0.5:9000", sess.OriginAddress)

	require.Equal(t, []mrs.MessageKind{mrs.KindDeviceConfiguration}, h.kinds(t))
	reply := h.lastMessage(t).(*mrs.DeviceConfiguration)
	assert.Equal(t, mrs.MessageTypeResponse, reply.MessageType)
	assert.Equal(t, "perimeter-radar", reply.DeviceIdentification.DeviceName)
}

func TestConfigurationEchoIgnored(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	echo := configRequest("C2-A")
	echo.MessageType = mrs.MessageTypeResponse
	a.HandleMessage(h, "addr", encode(t, echo))

	assert.Empty(t, a.Sessions())
	assert.Zero(t, h.frameCount())
}

func TestReRegistrationReplacesHandle(t *testing.T) {
	a := newTestAdapter(t, nil)
	first := &mockHandle{addr: "10.0.0.5:9000"}
	second := &mockHandle{addr: "10.0.0.6:9000"}

	a.HandleMessage(first, first.addr, encode(t, configRequest("C2-A")))
	a.HandleMessage(second, second.addr, encode(t, configRequest("C2-A")))

	require.Len(t, a.Sessions(), 1)
	assert.True(t, first.isClosed())
	assert.Equal(t, "10.0.0.6:9000", a.Sessions()[0].OriginAddress)
}

func TestSubscriptionFromUnknownPartyDiscarded(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, subscription("ghost", mrs.TechnicalStatus)))

	assert.Empty(t, a.Sessions())
	assert.Zero(t, h.frameCount())
}

func TestSubscriptionSendsFullStatus(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, configRequest("C2-A")))
	a.HandleMessage(h, "addr", encode(t, subscription("C2-A", mrs.TechnicalStatus)))

	kinds := h.kinds(t)
	require.Equal(t, []mrs.MessageKind{mrs.KindDeviceConfiguration, mrs.KindDeviceStatusReport}, kinds)

	// The immediate reply is the full report, bulky fields intact
	status := h.lastMessage(t).(*mrs.DeviceStatusReport)
	require.Len(t, status.Sensors, 1)
	assert.NotNil(t, status.Sensors[0].Detail)
}

func TestUnsubscribeRemovesSessionAndClosesHandle(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, configRequest("C2-A")))
	a.HandleMessage(h, "addr", encode(t, subscription("C2-A", mrs.OperationalIndication)))
	require.Len(t, a.Sessions(), 1)

	a.HandleMessage(h, "addr", encode(t, subscription("C2-A")))

	assert.Empty(t, a.Sessions())
	assert.True(t, h.isClosed())
}

func TestCommandRepliesRedactedStatus(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, configRequest("C2-A")))
	a.HandleMessage(h, "addr", encode(t, &mrs.CommandMessage{
		RequestorIdentification: "C2-A",
		Command:                 []byte(`{"setRange":5000}`),
	}))

	status := h.lastMessage(t).(*mrs.DeviceStatusReport)
	require.Len(t, status.Sensors, 1)
	assert.Nil(t, status.Sensors[0].Detail)
	assert.Nil(t, status.Sensors[0].Picture)
	assert.Equal(t, mrs.BITOK, status.Sensors[0].CommunicationState)
}

func TestCommandFromUnknownPartyDiscarded(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, &mrs.CommandMessage{RequestorIdentification: "ghost"}))
	assert.Zero(t, h.frameCount())
}

func TestCommandWithoutClientValidationRepliesOnInboundHandle(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.ValidateClients = false })
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, &mrs.CommandMessage{RequestorIdentification: "ghost"}))

	require.Equal(t, []mrs.MessageKind{mrs.KindDeviceStatusReport}, h.kinds(t))
}

func TestInvalidMessageStopsBeforeRouting(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	// Missing requestorIdentification fails the subscription schema
	a.HandleMessage(h, "addr", encode(t, &mrs.DeviceSubscription{}))

	assert.Empty(t, a.Sessions())
	assert.Zero(t, h.frameCount())
}

func TestUndecodableEnvelopeDiscarded(t *testing.T) {
	a := newTestAdapter(t, nil)
	h := &mockHandle{}

	a.HandleMessage(h, "addr", []byte("garbage"))
	a.HandleMessage(h, "addr", []byte(`{"type":"PictureStatus","id":"x","timestamp":1,"payload":{}}`))

	assert.Empty(t, a.Sessions())
	assert.Zero(t, h.frameCount())
}

func TestInboundRateLimit(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) {
		o.InboundRate = 1
		o.InboundBurst = 1
	})
	h := &mockHandle{}

	a.HandleMessage(h, "10.0.0.5", encode(t, configRequest("C2-A")))
	a.HandleMessage(h, "10.0.0.5", encode(t, subscription("C2-A", mrs.TechnicalStatus)))

	// Second envelope exceeded the bucket and was dropped
	require.Len(t, a.Sessions(), 1)
	assert.Empty(t, a.Sessions()[0].Subscriptions)

	// A different origin has its own bucket
	h2 := &mockHandle{}
	a.HandleMessage(h2, "10.0.0.6", encode(t, configRequest("C2-B")))
	assert.Len(t, a.Sessions(), 2)
}

type panickingValidator struct{}

func (panickingValidator) Validate(msg mrs.Message) error {
	if msg.Kind() == mrs.KindDeviceStatusReport {
		panic("status schema exploded")
	}
	return nil
}

func TestReplyPanicIsContained(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.Validator = panickingValidator{} })
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, configRequest("C2-A")))
	// The subscription reply panics inside validation; the dispatcher
	// must survive and keep serving.
	a.HandleMessage(h, "addr", encode(t, subscription("C2-A", mrs.TechnicalStatus)))
	a.HandleMessage(h, "addr", encode(t, configRequest("C2-B")))

	assert.Len(t, a.Sessions(), 2)
}

func TestStartStopLifecycle(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.HeartbeatInterval = time.Hour; o.FullStatusInterval = time.Hour })

	assert.Error(t, a.Stop())
	require.NoError(t, a.Start())
	assert.Error(t, a.Start())
	require.NoError(t, a.Stop())
	assert.Error(t, a.Stop())
}

func TestSetLocationConcurrentWithConfigReply(t *testing.T) {
	a := newTestAdapter(t, nil)
	frame := encode(t, configRequest("C2-A"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			a.SetLocation(32.0+float64(i)/1000, 34.7, 45, mrs.ReferenceMSL)
		}
	}()
	go func() {
		defer wg.Done()
		h := &mockHandle{}
		for i := 0; i < 200; i++ {
			a.HandleMessage(h, "addr", frame)
		}
	}()
	wg.Wait()

	require.Len(t, a.Sessions(), 1)
	cfg := a.Configuration()
	require.NotNil(t, cfg.Location)
	assert.Equal(t, 45.0, cfg.Location.Altitude.Value)
}

func TestConfigurationReturnsSnapshot(t *testing.T) {
	a := newTestAdapter(t, nil)

	before := a.Configuration()
	a.SetLocation(32.0853, 34.7818, 45, mrs.ReferenceMSL)
	after := a.Configuration()

	assert.Nil(t, before.Location)
	require.NotNil(t, after.Location)
	assert.Equal(t, 32.0853, after.Location.Latitude)
}

func TestSpeculativeSubscriptionRepliesOnInboundHandle(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.ValidateClients = false })
	h := &mockHandle{}

	a.HandleMessage(h, "addr", encode(t, subscription("ghost", mrs.OperationalIndication)))

	// The full status answers on the inbound handle even though the party
	// never registered
	require.Equal(t, []mrs.MessageKind{mrs.KindDeviceStatusReport}, h.kinds(t))
	status := h.lastMessage(t).(*mrs.DeviceStatusReport)
	require.Len(t, status.Sensors, 1)
	assert.NotNil(t, status.Sensors[0].Detail)

	// The session is recorded without a transport handle; delivery skips
	// it until a configuration exchange supplies one
	require.Len(t, a.Sessions(), 1)
	sess := a.Sessions()[0]
	assert.Equal(t, "ghost", sess.Identity)
	assert.Nil(t, sess.Handle)
	assert.True(t, sess.SubscribedTo(mrs.OperationalIndication))
}

func TestStopClosesSessions(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.HeartbeatInterval = time.Hour; o.FullStatusInterval = time.Hour })
	require.NoError(t, a.Start())

	h := &mockHandle{}
	a.HandleMessage(h, "addr", encode(t, configRequest("C2-A")))
	require.NoError(t, a.Stop())

	assert.True(t, h.isClosed())
}
