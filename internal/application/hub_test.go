package application_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/application"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

type recordingConn struct {
	frames []string
	fail   bool
}

func (c *recordingConn) Send(text string) error {
	if c.fail {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, text)
	return nil
}

func newTestHub() (*application.Hub, *application.StateStore) {
	store := application.NewStateStore()
	return application.NewHub(store, testLogger()), store
}

func TestHub_NewClientReceivesSnapshot(t *testing.T) {
	hub, store := newTestHub()
	store.Update("fan", domain.ActionTurnOn)

	conn := &recordingConn{}
	hub.AddClient("c1", conn)

	if len(conn.frames) != 6 {
		t.Fatalf("expected one frame per canonical device, got %d: %v", len(conn.frames), conn.frames)
	}

	want := map[string]bool{
		"ACTION:turn_off:light":         true,
		"ACTION:turn_on:fan":            true,
		"ACTION:turn_off:kitchen light": true,
		"ACTION:turn_off:refrigerator":  true,
		"ACTION:turn_off:tv":            true,
		"ACTION:turn_off:hometheater":   true,
	}
	for _, frame := range conn.frames {
		if !want[frame] {
			t.Errorf("unexpected snapshot frame %q", frame)
		}
	}
}

func TestHub_ApplyBroadcastsToClientsAndDevices(t *testing.T) {
	hub, store := newTestHub()
	client := &recordingConn{}
	device := &recordingConn{}
	hub.AddClient("c1", client)
	hub.AddDevice("esp32-01", device)
	client.frames = nil // drop snapshot replay

	ack := hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "light"})

	if ack.Action != domain.ActionTurnOn {
		t.Errorf("ack should be the original intent, got %+v", ack)
	}
	if store.Get(domain.DeviceTypeLight) != domain.StateOn {
		t.Error("store must be updated before broadcast")
	}
	if len(client.frames) != 1 || client.frames[0] != "ACTION:turn_on:light" {
		t.Errorf("client frames: %v", client.frames)
	}
	if len(device.frames) != 1 || device.frames[0] != "turn_on:light" {
		t.Errorf("device frames: %v", device.frames)
	}
}

func TestHub_ApplyAllExpandsWithConvenienceFrame(t *testing.T) {
	hub, _ := newTestHub()
	client := &recordingConn{}
	device := &recordingConn{}
	hub.AddClient("c1", client)
	hub.AddDevice("esp32-01", device)
	client.frames = nil

	hub.Apply(domain.Intent{Action: domain.ActionTurnOff, DeviceType: "all"})

	// 5 per-device frames (refrigerator skipped) plus the literal "all" frame.
	if len(client.frames) != 6 {
		t.Fatalf("client frames: got %d, want 6: %v", len(client.frames), client.frames)
	}
	if client.frames[len(client.frames)-1] != "ACTION:turn_off:all" {
		t.Errorf("last client frame should be the all convenience frame, got %q", client.frames[len(client.frames)-1])
	}
	for _, frame := range client.frames {
		if strings.Contains(frame, "refrigerator") {
			t.Errorf("refrigerator must be skipped on batch turn_off, got %q", frame)
		}
	}

	if len(device.frames) != 5 {
		t.Fatalf("device frames: got %d, want 5: %v", len(device.frames), device.frames)
	}
	for _, frame := range device.frames {
		if strings.HasPrefix(frame, "ACTION:") {
			t.Errorf("device frames carry no ACTION prefix, got %q", frame)
		}
	}
}

func TestHub_ApplyNonActionableIsNoOp(t *testing.T) {
	hub, store := newTestHub()
	client := &recordingConn{}
	hub.AddClient("c1", client)
	client.frames = nil
	before := store.Snapshot()

	for _, action := range []domain.Action{domain.ActionNone, domain.ActionError} {
		intent := domain.Intent{Action: action, DeviceType: "light", ResponseText: "nope"}
		ack := hub.Apply(intent)
		if ack != intent {
			t.Errorf("intent must be returned unchanged, got %+v", ack)
		}
	}

	if len(client.frames) != 0 {
		t.Errorf("no broadcast expected, got %v", client.frames)
	}
	after := store.Snapshot()
	for d, state := range before {
		if after[d] != state {
			t.Errorf("%s changed: %s -> %s", d, state, after[d])
		}
	}
}

func TestHub_ApplyUnknownDeviceIsNoOp(t *testing.T) {
	hub, store := newTestHub()
	client := &recordingConn{}
	hub.AddClient("c1", client)
	client.frames = nil

	hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "heater"})

	if len(client.frames) != 0 {
		t.Errorf("no broadcast expected for unknown device, got %v", client.frames)
	}
	for d, state := range store.Snapshot() {
		if state != domain.StateOff {
			t.Errorf("%s changed to %s", d, state)
		}
	}
}

func TestHub_ToggleMatchesExplicitAction(t *testing.T) {
	runFrame := func(frame string) ([]string, domain.State) {
		hub, store := newTestHub()
		client := &recordingConn{}
		hub.AddClient("c1", client)
		client.frames = nil

		hub.HandleClientFrame(frame)
		return client.frames, store.Get(domain.DeviceTypeLight)
	}

	toggleFrames, toggleState := runFrame("toggle:light")
	explicitFrames, explicitState := runFrame("ACTION:turn_on:light")

	if toggleState != explicitState {
		t.Errorf("end state differs: toggle %s, explicit %s", toggleState, explicitState)
	}
	if fmt.Sprint(toggleFrames) != fmt.Sprint(explicitFrames) {
		t.Errorf("broadcast differs: toggle %v, explicit %v", toggleFrames, explicitFrames)
	}
}

func TestHub_ToggleReadsStateBeforeMutation(t *testing.T) {
	hub, store := newTestHub()
	store.Update("light", domain.ActionTurnOn)

	hub.HandleClientFrame("toggle:light")

	if store.Get(domain.DeviceTypeLight) != domain.StateOff {
		t.Error("toggle of an on device should turn it off")
	}

	hub.HandleClientFrame("toggle:light")

	if store.Get(domain.DeviceTypeLight) != domain.StateOn {
		t.Error("toggle of an off device should turn it on")
	}
}

func TestHub_ConcurrentTogglesSerialize(t *testing.T) {
	hub, store := newTestHub()

	// An even number of toggles must land back on the starting state.
	// If two toggles could observe the same pre-state they would both
	// pick turn_on and leave the light on.
	const toggles = 100
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.HandleClientFrame("toggle:light")
		}()
	}
	wg.Wait()

	if store.Get(domain.DeviceTypeLight) != domain.StateOff {
		t.Error("even toggle count must restore the off state")
	}
}

func TestHub_MalformedFramesDroppedSilently(t *testing.T) {
	hub, store := newTestHub()
	client := &recordingConn{}
	hub.AddClient("c1", client)
	client.frames = nil

	for _, frame := range []string{"", "garbage", "ACTION:turn_on", "toggle:", "STATUS:on:light", "toggle:toaster"} {
		hub.HandleClientFrame(frame)
	}

	if len(client.frames) != 0 {
		t.Errorf("malformed frames must not broadcast, got %v", client.frames)
	}
	for d, state := range store.Snapshot() {
		if state != domain.StateOff {
			t.Errorf("%s changed to %s", d, state)
		}
	}
}

func TestHub_FailedSendSkipsWithoutAbortingFanOut(t *testing.T) {
	hub, _ := newTestHub()
	dead := &recordingConn{fail: true}
	alive := &recordingConn{}
	hub.AddClient("dead", dead)
	hub.AddClient("alive", alive)
	alive.frames = nil

	hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "fan"})

	if len(alive.frames) != 1 {
		t.Errorf("healthy client must still receive the frame, got %v", alive.frames)
	}
}

func TestHub_RemovedClientReceivesNothing(t *testing.T) {
	hub, _ := newTestHub()
	conn := &recordingConn{}
	hub.AddClient("c1", conn)
	hub.RemoveClient("c1")
	conn.frames = nil

	hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "fan"})

	if len(conn.frames) != 0 {
		t.Errorf("removed client must not receive frames, got %v", conn.frames)
	}
}

func TestHub_PollCommandAtMostOnce(t *testing.T) {
	hub, _ := newTestHub()

	if got := hub.PollCommand(); got != application.PollIdle {
		t.Errorf("idle poll: got %q, want %q", got, application.PollIdle)
	}

	hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "fan"})

	if got := hub.PollCommand(); got != "turn_on:fan" {
		t.Errorf("poll: got %q, want turn_on:fan", got)
	}
	if got := hub.PollCommand(); got != application.PollIdle {
		t.Errorf("second poll must return the idle sentinel, got %q", got)
	}
}

func TestHub_PollKeepsOnlyMostRecentCommand(t *testing.T) {
	hub, _ := newTestHub()

	hub.Apply(domain.Intent{Action: domain.ActionTurnOn, DeviceType: "fan"})
	hub.Apply(domain.Intent{Action: domain.ActionTurnOff, DeviceType: "light"})

	if got := hub.PollCommand(); got != "turn_off:light" {
		t.Errorf("poll: got %q, want the most recent command", got)
	}
}
