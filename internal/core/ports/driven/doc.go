// Package driven declares what the core needs from infrastructure.
//
// Required by the engine:
//
//   - EmbeddingStore: durable embedding records (SQLite, PostgreSQL, memory)
//   - IndexBuilder and VectorIndex: ANN indexes per content type (HNSW, IVF)
//
// May be nil:
//
//   - EmbeddingService: text to vector. Without it, text queries fail with
//     domain.ErrEmbeddingUnavailable.
//   - SchedulerStore: job schedules and run history. Without it the
//     scheduler does not run.
//   - ConfigStore: settings as dotted keys. Without it, defaults apply.
//
// Adapters import this package and domain; this package imports only domain.
package driven
