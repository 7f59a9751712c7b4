// Package importer ingests service-planning exports (CSV tables and PDF
// documents) into a tenant's canonical records: services, songs, people,
// leader preferences, and usage statistics.
//
// The pipeline is a chain of stages:
//
//	bytes -> adapter -> RawServiceRecord -> normalize -> match leaders
//	      -> resolve entities (+ optional metadata enrichment) -> commit
//
// A batch never aborts because one row or file is malformed. Failures are
// scoped to their origin (row, file, or service) and collected into a
// Report that is returned with the batch result. The only errors returned
// from the pipeline itself are configuration and infrastructure failures
// that make the whole run impossible (no repository, roster fetch failed).
//
// Files within a batch are processed strictly sequentially: generated
// identifiers must stay monotonic per tenant, so creations are never
// interleaved. The Allocator serializes allocation for concurrent callers.
package importer
