// Package store defines the persistence contracts of the generation
// pipeline: repository interfaces, the Transactor unit of work that binds
// them to one atomic transaction, and the errors every implementation
// returns. Implementations live in internal/platform/postgres and
// internal/store/memstore.
package store
