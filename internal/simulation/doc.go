// Package simulation drives the microscopic evolution of a contact graph
// across a fixed number of discrete time steps.
//
// Every step runs in strict order: the wake cycle advances all existing
// nodes and closes triangles, the cumulative degree distribution is
// captured, new nodes are admitted against that snapshot, and the resulting
// graph is handed to each registered Sink. Steps never overlap and there is
// no rollback; cancelling the context stops the run before the next step.
//
// All randomness comes from the sampler passed to NewDriver, so two drivers
// built over identically seeded samplers and identical seed graphs produce
// identical runs.
//
// Usage:
//
//	s, _ := sampling.NewSeeded(params, 42)
//	g, _ := seed.LoadFile("SeedGraph/network.dat", s)
//	d, _ := simulation.NewDriver(g, s, simulation.Config{Steps: 30, ArrivalRate: 0.25}, simulation.Options{
//	    Sinks: []simulation.Sink{jsonSink, htmlSink},
//	})
//	err := d.Run(ctx)
package simulation
