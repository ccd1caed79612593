/*
Package observability turns engine lifecycle hooks into Prometheus metrics
and structured audit logs.

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	eng := taxgraph.New(taxgraph.WithLifecycleHooks(
		observability.Aggregate(m.Hooks(), observability.LogHooks(logger)),
	))
*/
package observability
