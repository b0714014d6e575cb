package metrics

import "time"

// Instruments bundles the collector and the optional Prometheus
// exporter behind nil-safe recording helpers. Services call these at
// operation boundaries; either field may be nil.
type Instruments struct {
	Collector *Collector
	Exporter  *PrometheusExporter
}

// ObserveOperation records one operation call with its duration and
// outcome. Call with the operation start time once the result is known.
func (i *Instruments) ObserveOperation(operation string, start time.Time, err error) {
	if i == nil {
		return
	}

	seconds := time.Since(start).Seconds()

	if i.Collector != nil {
		i.Collector.RecordRequest(operation)
		i.Collector.RecordDuration(operation, seconds)
		if err != nil {
			i.Collector.RecordError(operation)
		}
	}
	if i.Exporter != nil {
		i.Exporter.RecordRequest(operation)
		i.Exporter.RecordDuration(operation, seconds)
		if err != nil {
			i.Exporter.RecordError(operation)
		}
	}
}

// ObserveCheck records a permission check outcome.
func (i *Instruments) ObserveCheck(allowed bool) {
	if i == nil {
		return
	}

	if i.Collector != nil {
		i.Collector.RecordCheck(allowed)
	}
	if i.Exporter != nil {
		i.Exporter.RecordCheck(allowed)
	}
}
