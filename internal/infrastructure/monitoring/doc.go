/*
Package monitoring collects per-session Prometheus metrics.

Each session owns a private registry rather than the process-global one, so
tests and nested sessions never collide on registration. There is no HTTP
endpoint: the wrapper's stdout belongs to the child process. Instead the
registry is written once on exit in the node-exporter textfile format.

	metrics := monitoring.NewMetrics()
	metrics.RecordBytes(monitoring.DirectionInput, n)
	metrics.RecordGeneration("command", "ok", elapsed)
	_ = metrics.WriteTextfile(filepath.Join(dir, "metrics.prom"))

All recording methods are safe to call on a nil *Metrics.
*/
package monitoring
