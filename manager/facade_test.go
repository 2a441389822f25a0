// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"errors"
	"strings"
	"testing"

	"github.com/sensord-project/sensord/bus"
	"github.com/sensord-project/sensord/errs"
	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/registry"
	"github.com/sensord-project/sensord/session"
)

type fakeAdaptor struct {
	id         string
	valid      bool
	started    bool
	blanked    bool
	standby    bool
	properties map[string]float64
}

func newFakeAdaptor(id string) *fakeAdaptor {
	return &fakeAdaptor{id: id, valid: true, properties: make(map[string]float64)}
}

func (f *fakeAdaptor) ID() string    { return f.id }
func (f *fakeAdaptor) IsValid() bool { return f.valid }
func (f *fakeAdaptor) StartAdaptor() bool {
	f.started = true
	return true
}
func (f *fakeAdaptor) StopAdaptor()                           { f.started = false }
func (f *fakeAdaptor) SetProperty(name string, value float64) { f.properties[name] = value }
func (f *fakeAdaptor) SetScreenBlanked(blanked bool)           { f.blanked = blanked }
func (f *fakeAdaptor) Resume()                                 { f.standby = false }
func (f *fakeAdaptor) Standby()                                { f.standby = true }

type fakeChain struct {
	id      string
	running bool
}

func (c *fakeChain) ID() string    { return c.id }
func (c *fakeChain) IsValid() bool { return true }
func (c *fakeChain) Running() bool { return c.running }

type fakeSensor struct {
	id        string
	valid     bool
	running   bool
	stopped   []session.ID
	overrides map[session.ID]bool
}

func newFakeSensor(id string) *fakeSensor {
	return &fakeSensor{id: id, valid: true, running: true, overrides: make(map[session.ID]bool)}
}

func (s *fakeSensor) ID() string     { return s.id }
func (s *fakeSensor) IsValid() bool  { return s.valid }
func (s *fakeSensor) Running() bool  { return s.running }
func (s *fakeSensor) Stop(sessionID session.ID) {
	s.stopped = append(s.stopped, sessionID)
}
func (s *fakeSensor) SetStandbyOverride(sessionID session.ID, override bool) {
	s.overrides[sessionID] = override
}
func (s *fakeSensor) RemoveIntervalRequest(session.ID)  {}
func (s *fakeSensor) RemoveDataRangeRequest(session.ID) {}

type fakeGateway struct {
	removed []session.ID
	pids    map[session.ID]int
}

func newFakeGateway() *fakeGateway { return &fakeGateway{pids: make(map[session.ID]int)} }

func (g *fakeGateway) Listen(path string) error         { return nil }
func (g *fakeGateway) Write(session.ID, []byte) bool    { return true }
func (g *fakeGateway) RemoveSession(sessionID session.ID) {
	g.removed = append(g.removed, sessionID)
}
func (g *fakeGateway) PeerPID(sessionID session.ID) (int, error) {
	pid, ok := g.pids[sessionID]
	if !ok {
		return 0, errors.New("no connection")
	}
	return pid, nil
}
func (g *fakeGateway) Close() error { return nil }

// newTestFacade returns a Facade wired to a fakeGateway and a Local
// bus, with no sensor/chain/adaptor types declared yet.
func newTestFacade() (*Facade, *bus.Local, *fakeGateway) {
	b := bus.NewLocal()
	g := newFakeGateway()
	f := New(Config{Gateway: g, Bus: b, ObjectPathPrefix: "/SensorManager"})
	return f, b, g
}

// declareAccel registers an "AccelerometerSensor" factory and one
// sensor id "accelsensor" backed by it. Returns the fakeSensor built
// on first instantiation, once a caller requests control or listen.
func declareAccel(f *Facade) **fakeSensor {
	built := new(*fakeSensor)
	f.Factories().RegisterSensor("AccelerometerSensor", func(id string) (factory.SensorInstance, error) {
		s := newFakeSensor(id)
		*built = s
		return s, nil
	})
	f.DeclareSensor("accelsensor", "AccelerometerSensor")
	return built
}

func TestRequestControlThenRelease(t *testing.T) {
	f, _, gw := newTestFacade()
	built := declareAccel(f)

	sessionID, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}
	if !sessionID.Valid() {
		t.Fatalf("got invalid session id")
	}
	if *built == nil {
		t.Fatalf("sensor was not instantiated")
	}

	ok, err := f.ReleaseSensor("accelsensor", sessionID)
	if err != nil || !ok {
		t.Fatalf("ReleaseSensor = %v, %v, want true, nil", ok, err)
	}

	entry := f.sensors.Lookup("accelsensor")
	if entry.Instance != nil {
		t.Fatalf("instance not torn down after release")
	}
	if len(gw.removed) != 1 || gw.removed[0] != sessionID {
		t.Fatalf("gateway.RemoveSession not called for %d: %v", sessionID, gw.removed)
	}
}

func TestSecondControlRequestRejected(t *testing.T) {
	f, b, _ := newTestFacade()
	declareAccel(f)

	first, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("first RequestControlSensor: %v", err)
	}

	_, err = f.RequestControlSensor("accelsensor")
	if err == nil {
		t.Fatalf("expected AlreadyUnderControl error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.AlreadyUnderControl {
		t.Fatalf("err = %v, want AlreadyUnderControl", err)
	}
	if len(b.Errors()) == 0 || b.Errors()[len(b.Errors())-1] != errs.AlreadyUnderControl {
		t.Fatalf("control bus did not observe AlreadyUnderControl: %v", b.Errors())
	}

	if ok, err := f.ReleaseSensor("accelsensor", first); err != nil || !ok {
		t.Fatalf("cleanup release failed: %v, %v", ok, err)
	}
}

func TestListenersCoexistWithController(t *testing.T) {
	f, _, _ := newTestFacade()
	declareAccel(f)

	controller, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}

	listener1, err := f.RequestListenSensor("accelsensor")
	if err != nil {
		t.Fatalf("first RequestListenSensor: %v", err)
	}
	listener2, err := f.RequestListenSensor("accelsensor")
	if err != nil {
		t.Fatalf("second RequestListenSensor: %v", err)
	}
	if listener1 == listener2 {
		t.Fatalf("expected distinct session ids for the two listeners")
	}

	entry := f.sensors.Lookup("accelsensor")
	if entry.Instance == nil {
		t.Fatalf("sensor instance missing while sessions are active")
	}

	if ok, err := f.ReleaseSensor("accelsensor", controller); err != nil || !ok {
		t.Fatalf("release controller: %v, %v", ok, err)
	}
	if entry.Instance == nil {
		t.Fatalf("instance torn down while listeners remain")
	}

	if ok, err := f.ReleaseSensor("accelsensor", listener1); err != nil || !ok {
		t.Fatalf("release listener1: %v, %v", ok, err)
	}
	if ok, err := f.ReleaseSensor("accelsensor", listener2); err != nil || !ok {
		t.Fatalf("release listener2: %v, %v", ok, err)
	}
	if entry.Instance != nil {
		t.Fatalf("instance not torn down after last session released")
	}
}

func TestDisconnectTriggersStopAndRelease(t *testing.T) {
	f, _, gw := newTestFacade()
	built := declareAccel(f)

	sessionID, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}

	f.LostClient(sessionID)

	if len((*built).stopped) != 1 || (*built).stopped[0] != sessionID {
		t.Fatalf("sensor.Stop not called with lost session: %v", (*built).stopped)
	}

	entry := f.sensors.Lookup("accelsensor")
	if entry.Instance != nil {
		t.Fatalf("instance not released after lost client")
	}
	if len(gw.removed) != 1 || gw.removed[0] != sessionID {
		t.Fatalf("gateway session not removed on lost client: %v", gw.removed)
	}
}

func TestPropertyArbitrationPicksMaximum(t *testing.T) {
	f, _, _ := newTestFacade()
	adaptor := newFakeAdaptor("accel-adaptor")
	f.adaptors.Insert("accel-adaptor", &registry.AdaptorEntry{Type: "AccelerometerAdaptor", Instance: adaptor})

	sessionA := f.sessions.Next()
	sessionB := f.sessions.Next()

	f.SetPropertyRequest(sessionA, "PollInterval", "accel-adaptor", 10)
	got := f.SetPropertyRequest(sessionB, "PollInterval", "accel-adaptor", 25)
	if got != 25 {
		t.Fatalf("winning value = %v, want 25", got)
	}
	if adaptor.properties["PollInterval"] != 25 {
		t.Fatalf("adaptor property = %v, want 25", adaptor.properties["PollInterval"])
	}

	f.mu.Lock()
	f.clearRequestsLocked(sessionB)
	f.mu.Unlock()

	if adaptor.properties["PollInterval"] != 10 {
		t.Fatalf("adaptor property after clearing top request = %v, want 10", adaptor.properties["PollInterval"])
	}
}

func TestStatusDumpShapesControlAndListenLines(t *testing.T) {
	f, _, gw := newTestFacade()
	declareAccel(f)

	controller, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}
	gw.pids[controller] = 4242

	dump := f.StatusDump()
	if !strings.Contains(dump, "Control (PID: 4242)") {
		t.Fatalf("status dump missing control PID line:\n%s", dump)
	}
	if !strings.Contains(dump, "No listen sessions") {
		t.Fatalf("status dump missing 'No listen sessions':\n%s", dump)
	}
}

func TestChainAndAdaptorRefcounting(t *testing.T) {
	f, _, _ := newTestFacade()

	var built *fakeChain
	f.Factories().RegisterChain("AccelerometerChain", func(id string) (factory.ChainInstance, error) {
		built = &fakeChain{id: id, running: true}
		return built, nil
	})
	f.DeclareChain("accelchain", "AccelerometerChain")

	first, err := f.RequestChain("accelchain")
	if err != nil {
		t.Fatalf("first RequestChain: %v", err)
	}
	second, err := f.RequestChain("accelchain")
	if err != nil {
		t.Fatalf("second RequestChain: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same chain instance across requests")
	}
	if built == nil {
		t.Fatalf("chain constructor never ran")
	}

	entry := f.chains.Lookup("accelchain")
	if entry.RefCount != 2 {
		t.Fatalf("RefCount = %d, want 2", entry.RefCount)
	}

	if err := f.ReleaseChain("accelchain"); err != nil {
		t.Fatalf("first ReleaseChain: %v", err)
	}
	if entry.Instance == nil {
		t.Fatalf("instance torn down with one reference remaining")
	}
	if err := f.ReleaseChain("accelchain"); err != nil {
		t.Fatalf("second ReleaseChain: %v", err)
	}
	if entry.Instance != nil {
		t.Fatalf("instance not torn down after last reference released")
	}

	var adaptorBuilt *fakeAdaptor
	f.Factories().RegisterAdaptor("AccelerometerAdaptor", func(id string) (factory.AdaptorInstance, error) {
		adaptorBuilt = newFakeAdaptor(id)
		return adaptorBuilt, nil
	})
	f.DeclareAdaptor("accel-adaptor", "AccelerometerAdaptor", map[string]float64{"PollInterval": 100})

	instance, err := f.RequestDeviceAdaptor("accel-adaptor")
	if err != nil {
		t.Fatalf("RequestDeviceAdaptor: %v", err)
	}
	if !adaptorBuilt.started {
		t.Fatalf("adaptor was not started")
	}
	if adaptorBuilt.properties["PollInterval"] != 100 {
		t.Fatalf("default property map was not applied")
	}
	if instance != adaptorBuilt {
		t.Fatalf("RequestDeviceAdaptor returned a different instance than the constructor built")
	}

	if err := f.ReleaseDeviceAdaptor("accel-adaptor"); err != nil {
		t.Fatalf("ReleaseDeviceAdaptor: %v", err)
	}
	if adaptorBuilt.started {
		t.Fatalf("adaptor was not stopped after last reference released")
	}
}

func TestRequestControlRollsBackOnRegisterObjectFailure(t *testing.T) {
	f, b, _ := newTestFacade()
	declareAccel(f)
	b.SetRegisterObjectErr(errors.New("bus unavailable"))

	sessionID, err := f.RequestControlSensor("accelsensor")
	if err == nil {
		t.Fatalf("expected CanNotRegisterObject error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.CanNotRegisterObject {
		t.Fatalf("err = %v, want CanNotRegisterObject", err)
	}
	if sessionID.Valid() {
		t.Fatalf("got a valid session id despite registration failure")
	}

	entry := f.sensors.Lookup("accelsensor")
	if entry.Instance != nil {
		t.Fatalf("instance left live after failed registration")
	}
	if entry.ControllingSession.Valid() {
		t.Fatalf("entry still records a controlling session after rollback")
	}
	if len(entry.ListenSessions) != 0 {
		t.Fatalf("entry still records listen sessions after rollback")
	}

	b.SetRegisterObjectErr(nil)
	retry, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor after rollback: %v", err)
	}
	if ok, err := f.ReleaseSensor("accelsensor", retry); err != nil || !ok {
		t.Fatalf("cleanup release failed: %v, %v", ok, err)
	}
}

func TestRequestListenRollsBackOnRegisterObjectFailure(t *testing.T) {
	f, b, _ := newTestFacade()
	declareAccel(f)
	b.SetRegisterObjectErr(errors.New("bus unavailable"))

	sessionID, err := f.RequestListenSensor("accelsensor")
	if err == nil {
		t.Fatalf("expected CanNotRegisterObject error")
	}
	if sessionID.Valid() {
		t.Fatalf("got a valid session id despite registration failure")
	}

	entry := f.sensors.Lookup("accelsensor")
	if entry.Instance != nil {
		t.Fatalf("instance left live after failed registration")
	}
	if len(entry.ListenSessions) != 0 {
		t.Fatalf("entry still records listen sessions after rollback")
	}
}

func TestStandbyOverrideAndRequestRemoval(t *testing.T) {
	f, _, _ := newTestFacade()
	built := declareAccel(f)

	controller, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}

	if err := f.SetStandbyOverrideRequest("accelsensor", controller, true); err != nil {
		t.Fatalf("SetStandbyOverrideRequest: %v", err)
	}
	if !(*built).overrides[controller] {
		t.Fatalf("standby override not recorded on sensor instance")
	}

	if err := f.RemoveIntervalRequest("accelsensor", controller); err != nil {
		t.Fatalf("RemoveIntervalRequest: %v", err)
	}
	if err := f.RemoveDataRangeRequest("accelsensor", controller); err != nil {
		t.Fatalf("RemoveDataRangeRequest: %v", err)
	}

	if ok, err := f.ReleaseSensor("accelsensor", controller); err != nil || !ok {
		t.Fatalf("cleanup release failed: %v, %v", ok, err)
	}
}

func TestStandbyOverrideRequestOnUninstantiatedSensor(t *testing.T) {
	f, _, _ := newTestFacade()
	declareAccel(f)

	err := f.SetStandbyOverrideRequest("accelsensor", f.sessions.Next(), true)
	if err == nil {
		t.Fatalf("expected NotInstantiated error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.NotInstantiated {
		t.Fatalf("err = %v, want NotInstantiated", err)
	}
}

func TestReleaseUnknownSensorIdRejectedBeforeAnySideEffect(t *testing.T) {
	f, _, gw := newTestFacade()
	sessionID := f.sessions.Next()

	ok, err := f.ReleaseSensor("nonexistent", sessionID)
	if ok {
		t.Fatalf("ReleaseSensor on unknown id returned true")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.IdNotRegistered {
		t.Fatalf("err = %v, want IdNotRegistered", err)
	}
	if len(gw.removed) != 0 {
		t.Fatalf("gateway session removed despite unknown sensor id: %v", gw.removed)
	}
}

func TestReleaseStaleSessionOnLiveSensorStillClearsRequests(t *testing.T) {
	f, _, gw := newTestFacade()
	declareAccel(f)

	controller, err := f.RequestControlSensor("accelsensor")
	if err != nil {
		t.Fatalf("RequestControlSensor: %v", err)
	}

	stale := f.sessions.Next()
	f.SetPropertyRequest(stale, "PollInterval", "accel-adaptor", 99)

	ok, err := f.ReleaseSensor("accelsensor", stale)
	if ok {
		t.Fatalf("ReleaseSensor with a stale session returned true")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.NotInstantiated {
		t.Fatalf("err = %v, want NotInstantiated", err)
	}
	if len(f.arbitrator.ClearRequests(stale)) != 0 {
		t.Fatalf("stale session's property request was not cleared by the failed release")
	}
	if len(gw.removed) != 1 || gw.removed[0] != stale {
		t.Fatalf("gateway session not removed even though release reported failure: %v", gw.removed)
	}

	if ok, err := f.ReleaseSensor("accelsensor", controller); err != nil || !ok {
		t.Fatalf("cleanup release failed: %v, %v", ok, err)
	}
}
