package proxy

import (
	"github.com/jonwraymond/proxycache/cache"
	"github.com/jonwraymond/proxycache/observe"
	"github.com/jonwraymond/proxycache/resilience"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	policy     cache.Policy
	logger     observe.Logger
	middleware *observe.Middleware
	obs        observe.Observer
	guard      *resilience.Guard
	observer   cache.Observer
}

// WithPolicy sets the sub-cache policy. Default: cache.DefaultPolicy().
// An Observer set on the policy receives every cache event.
func WithPolicy(p cache.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger for lifecycle events. Default: the
// middleware's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMiddleware sets the middleware wrapped around every generation.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *options) { o.middleware = mw }
}

// WithObservability builds the middleware from an Observer's tracer, meter
// and logger. It is ignored when WithMiddleware is also given.
func WithObservability(obs observe.Observer) Option {
	return func(o *options) { o.obs = obs }
}

// WithGuard runs every generation through g.
func WithGuard(g *resilience.Guard) Option {
	return func(o *options) { o.guard = g }
}

// WithObserver receives every cache event after the Cache has accounted
// for it.
func WithObserver(obs cache.Observer) Option {
	return func(o *options) { o.observer = obs }
}
