package notify

import "github.com/kilianp07/fleetdispatch/core/factory"

var notifierRegistry = factory.NewRegistry[Notifier]()

func init() {
	_ = RegisterNotifier("nop", func(map[string]any) (Notifier, error) { return NopNotifier{}, nil })
}

// RegisterNotifier adds a notifier factory identified by name.
func RegisterNotifier(name string, f factory.Factory[Notifier]) error {
	return notifierRegistry.Register(name, f)
}

// NewNotifier creates the configured notifier. An empty type yields a
// NopNotifier.
func NewNotifier(cfg factory.ModuleConfig) (Notifier, error) {
	if cfg.Type == "" {
		return NopNotifier{}, nil
	}
	return notifierRegistry.Create(cfg)
}
