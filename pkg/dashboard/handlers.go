package dashboard

import (
	"encoding/json"
	"fmt"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/types"
	"github.com/tidwall/gjson"
)

type handler func(event types.Event) error

func (c *Controller) dispatchTable() map[types.EventName]handler {
	return map[types.EventName]handler{
		types.EventConnect:       c.onConnect,
		types.EventDisconnect:    c.onDisconnect,
		types.EventConnected:     c.onConnected,
		types.EventSubscribed:    c.onSubscribed,
		types.EventScanStarted:   c.onScanStarted,
		types.EventScanOutput:    c.onScanOutput,
		types.EventScanComplete:  c.onScanComplete,
		types.EventScanError:     c.onScanError,
		types.EventScanStopped:   c.onScanStopped,
		types.EventConfigUpdated: c.onConfigUpdated,
	}
}

func (c *Controller) onConnect(types.Event) error {
	c.state.Connected = true
	gologger.Info().Msgf("Connected to server")
	c.notify(notify.Success, "Connected to server")
	return nil
}

func (c *Controller) onDisconnect(types.Event) error {
	c.state.Connected = false
	gologger.Warning().Msgf("Disconnected from server")
	c.notify(notify.Warning, "Disconnected from server")
	return nil
}

func (c *Controller) onConnected(event types.Event) error {
	gologger.Verbose().Msgf("Server says: %s", gjson.GetBytes(event.Payload, "data").String())
	return nil
}

func (c *Controller) onSubscribed(event types.Event) error {
	gologger.Verbose().Msgf("Subscribed to room %s", gjson.GetBytes(event.Payload, "room").String())
	return nil
}

func (c *Controller) onScanStarted(event types.Event) error {
	var payload types.ScanStartedPayload
	if err := decode(event, &payload); err != nil {
		return err
	}
	c.state.Scans.Started(payload.TaskID, payload.Target, metadata(event.Payload))
	c.state.Activity.Record(types.ActivityStarted, payload.TaskID,
		fmt.Sprintf("Started scan on %s (ID: %s)", payload.Target, payload.TaskID))
	c.notify(notify.Info, fmt.Sprintf("Scan started: %s", payload.Target))
	return nil
}

func (c *Controller) onScanOutput(event types.Event) error {
	var payload types.ScanOutputPayload
	if err := decode(event, &payload); err != nil {
		return err
	}
	c.state.Scans.Output(payload.TaskID, payload.Output)
	c.state.Tails.Append(payload.TaskID, payload.Output)
	c.state.Activity.Record(types.ActivityOutput, payload.TaskID, payload.Output)
	return nil
}

func (c *Controller) onScanComplete(event types.Event) error {
	var payload types.ScanCompletePayload
	if err := decode(event, &payload); err != nil {
		return err
	}
	c.state.Scans.Complete(payload.TaskID, payload.Success, payload.Error)
	c.state.Tails.Forget(payload.TaskID)

	if payload.Success {
		c.state.Activity.Record(types.ActivityCompleted, payload.TaskID,
			fmt.Sprintf("Scan %s completed successfully", payload.TaskID))
		c.notify(notify.Success, fmt.Sprintf("Scan completed: %s", payload.TaskID))
		return nil
	}
	c.state.Activity.Record(types.ActivityFailed, payload.TaskID,
		fmt.Sprintf("Scan %s failed: %s", payload.TaskID, payload.Error))
	c.notify(notify.Error, fmt.Sprintf("Scan failed: %s - %s", payload.TaskID, payload.Error))
	return nil
}

func (c *Controller) onScanError(event types.Event) error {
	var payload types.ScanErrorPayload
	if err := decode(event, &payload); err != nil {
		return err
	}
	if payload.TaskID != "" {
		c.state.Scans.Errored(payload.TaskID, payload.Error)
	}
	c.state.Activity.Record(types.ActivityError, payload.TaskID, fmt.Sprintf("Error: %s", payload.Error))
	c.notify(notify.Error, fmt.Sprintf("Scan error: %s", payload.Error))
	return nil
}

func (c *Controller) onScanStopped(event types.Event) error {
	taskID := gjson.GetBytes(event.Payload, "task_id").String()
	c.state.Scans.Stopped(taskID)
	c.state.Tails.Forget(taskID)
	c.state.Activity.Record(types.ActivityStopped, taskID, fmt.Sprintf("Scan %s stopped", taskID))
	c.notify(notify.Warning, fmt.Sprintf("Scan stopped: %s", taskID))
	return nil
}

func (c *Controller) onConfigUpdated(types.Event) error {
	c.notify(notify.Info, "Configuration updated")
	c.refresh(c.ctx())
	return nil
}

func decode(event types.Event, v any) error {
	if len(event.Payload) == 0 {
		return fmt.Errorf("empty %s payload", event.Name)
	}
	if err := json.Unmarshal(event.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Name, err)
	}
	return nil
}

// metadata keeps the scalar payload fields other than the identity ones
func metadata(payload []byte) map[string]string {
	var out map[string]string
	gjson.ParseBytes(payload).ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "task_id", "target":
			return true
		}
		if value.IsObject() || value.IsArray() {
			return true
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[key.String()] = value.String()
		return true
	})
	return out
}
