// Package sequence issues the monotonic ids for conversations, messages and
// usage records.
//
// Counters live in memory and advance synchronously. Every advance schedules
// a best-effort save of all counters to the registered persisters on a worker
// pool; a failed save is logged and never reaches the caller. On start the
// counters are reconciled against every store so that an id already written
// to a store is never issued twice:
//
//	counters, err := sequence.New()
//	if err != nil {
//	    return err
//	}
//	defer counters.Release()
//
//	if err := counters.Load(ctx, fallbackStore, primaryStore); err != nil {
//	    return err
//	}
//	counters.AddPersister(primaryStore)
//
//	id := counters.Next(sequence.Conversations)
package sequence
