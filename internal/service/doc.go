// Package service routes tool calls to the providers that own them.
//
// Tool IDs are namespaced by service: "terminal.send_command" is executed by
// the provider whose Definition().ID is "terminal". Every call is timed in
// the tool metrics when a *monitoring.Metrics is supplied.
//
//	registry := service.NewRegistry(logger, metrics)
//	registry.Register(terminalProvider)
//	result, err := registry.Execute(ctx, "terminal.list_sessions", nil, appCtx)
package service
