package mqtt

import (
	"github.com/kilianp07/fleetdispatch/core/factory"
	"github.com/kilianp07/fleetdispatch/core/notify"
)

// init registers the MQTT notifiers.
func init() {
	_ = notify.RegisterNotifier("mqtt", func(conf map[string]any) (notify.Notifier, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPahoNotifier(c)
	})
	_ = notify.RegisterNotifier("mock", func(conf map[string]any) (notify.Notifier, error) {
		var c struct {
			FailIDs []string `json:"fail_ids"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		m := NewMockNotifier()
		for _, id := range c.FailIDs {
			m.FailIDs[id] = true
		}
		return m, nil
	})
}
