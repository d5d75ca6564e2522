// Package fanout runs one lookup per target under a shared permit pool and
// folds the results into a single Aggregate.
//
// Each unit of work acquires a permit, performs its lookup, releases the
// permit as soon as the lookup returns and only then interprets the
// response. Parsing cost therefore never occupies admission capacity.
//
// Example usage:
//
//	pool := admission.NewPool(5)
//	sup := fanout.NewSupervisor(lookupClient, pool)
//	agg := sup.Run(ctx, targets)
//	fmt.Println(len(agg.Successes), agg.Failures)
//
// Guarantees:
//   - Exactly one Outcome per target, including targets whose unit panicked
//   - len(Successes) + Failures equals the number of targets
//   - Successes are in completion order; call Aggregate.SortByID for a
//     stable order
package fanout
