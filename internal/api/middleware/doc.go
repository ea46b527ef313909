// Package middleware provides gin middleware for CORS and rate limiting.
//
// Command submission is limited per terminal session rather than per caller,
// so one busy session cannot starve the others:
//
//	terminals.POST("/:id/commands", middleware.RateLimit(cfg, middleware.ByParam("id")), h.SendCommand)
package middleware
