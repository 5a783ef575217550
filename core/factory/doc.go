// Package factory instantiates pluggable modules, such as metrics sinks and
// vehicle notifiers, from `{type, conf}` configuration blocks. Each package
// owning an interface keeps a Registry; adapters register a Factory under a
// type name from their init function and decode conf with Decode:
//
//	var notifiers = factory.NewRegistry[notify.Notifier]()
//
//	notifiers.Register("mock", func(conf map[string]any) (notify.Notifier, error) {
//	    var c struct{ FailIDs []string `json:"fail_ids"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newMock(c.FailIDs), nil
//	})
//	n, err := notifiers.Create(factory.ModuleConfig{Type: "mock"})
package factory
