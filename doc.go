// Package mongoscan reads MongoDB collections into Apache Arrow tables.
//
// A scan infers a schema from a sample of documents, converts each document
// into typed columnar buffers and splits the read across parallel cursors.
// An optional row bound selects the newest N documents by _id and returns
// them in ascending _id order.
//
// # Packages
//
//   - pkg/mongoscan: the scan source and the ScanMongoCollection entry point
//   - pkg/lazy: the lazy frame that negotiates projection and slice pushdown
//   - pkg/scan: partition planning and the parallel scanner
//   - pkg/schema: data types, schemas and inference from samples
//   - pkg/columnar: Arrow buffers and the document value converter
//   - pkg/table: chunked result tables, sorting and IPC/JSON output
//   - pkg/store: the collection abstraction and its MongoDB driver backend
//   - pkg/workerpool: the injected bounded worker pool
//   - pkg/config, pkg/logger, pkg/errors, pkg/metrics, pkg/observability:
//     options, logging, structured errors, Prometheus metrics and tracing
//
// # Quick Start
//
//	n := 129
//	frame, err := mongoscan.ScanMongoCollection(config.ScanOptions{
//	    ConnectionStr:     "mongodb://localhost:27017",
//	    DB:                "shop",
//	    Collection:        "orders",
//	    InferSchemaLength: 1000,
//	    NRows:             &n,
//	})
//	if err != nil {
//	    return err
//	}
//	tbl, err := frame.Collect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tbl.Release()
//
// The mongoscan command wraps the same flow:
//
//	mongoscan scan --uri mongodb://localhost:27017 --db shop --collection orders --n-rows 129
package mongoscan
