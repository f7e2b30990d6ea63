// Package knowledge implements semantic retrieval over the document store.
//
// The Store type embeds the query text and runs vector similarity search
// against the document repository, implementing backend.VectorBackend for
// the pipeline. The Ingestor type bulk-loads documents, generating their
// embeddings concurrently over a worker pool.
//
// All retrieval failures wrap core.ErrVectorStore so the resilience layer
// can classify them uniformly.
package knowledge
