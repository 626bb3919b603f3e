/*
Package health polls the detection worker for health snapshots.

A Poller is bound to one poll generation. It queries its Probe on every
interval, one query at a time, and hands each snapshot to a Handler
together with the generation. A failed or timed-out query becomes an
Unknown snapshot, never an error, so the handler always sees one snapshot
per tick.

# Timing

The first query runs one interval after Run starts. The ticker drops ticks
while a query is in flight, so a slow worker makes the poller skip
intervals instead of stacking requests; skipped intervals are counted in
lookout_poll_skipped_total.

# Cancellation

Run returns when its context is cancelled or when the handler returns
false. A query that completes after cancellation is discarded without
reaching the handler, even if the probe itself ignored the context.

# Degraded connectivity

Status counts consecutive Unknown snapshots. Once Config.Retries is
reached the poller logs a warning and reports the worker as degraded until
the next successful query. Degradation never changes session state.

	p := health.NewPoller(gen, workerClient, health.DefaultConfig(),
		func(gen uint64, snap types.HealthSnapshot) bool {
			return handle(gen, snap)
		}).WithPhase(health.PhaseSteady)
	go p.Run(ctx)
*/
package health
