/*
Package observability exposes Prometheus metrics for ifgate.

Metrics are fed by session.Hooks, so the registry stays unaware of Prometheus:

	m := observability.NewMetrics()
	reg := session.NewRegistry(launcher, session.WithHooks(m.Hooks()))
	m.ObserveActive(reg.Len)
	http.Handle("/metrics", m.Handler())
*/
package observability
