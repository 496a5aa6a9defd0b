// Package task defines the schedulable task model, its durable store, and
// the trigger evaluation rules.
//
// # Store
//
// The Store persists the task collection as one JSON document that is read
// in full on every access and rewritten in full on every mutation. The
// collection is small (tens of tasks), so simplicity wins over an
// incremental format; a corrupt file degrades to an empty collection
// instead of wedging the agent.
//
// # Triggers
//
// Due is a pure function from (task, instant) to a boolean:
//
//   - now: always due, consumed after the first dispatch
//   - once: due when the scheduled instant has passed, then consumed
//   - interval: due when the interval has elapsed since the last run
//   - cron: due per a restricted 5-field expression (minute, hour, weekday)
//   - event: never due on the clock; fired by the network watcher
//
// The cron dialect deliberately evaluates only the minute, hour, and
// weekday fields; day-of-month and month are accepted but ignored.
package task
