// Package cqldata defines the contracts, types, and helpers shared by the data-access adapters that
// persist files, folders, cache entries and log records into a wide-column store (Cassandra or ScyllaDB),
// scoped per tenant and cloudlet.
//
// Concrete stores live in subpackages such as cassandra, redis (cache values) and s3 (file content).
// The adapters built on top of them live in files, caching and logging, while mixed routes file and
// folder calls between the wide-column store and the local file system (localfs) by path namespace.
// Package slots exposes raw CQL connect/execute to an expression layer.
package cqldata
