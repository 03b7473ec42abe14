package ingest

import "github.com/prometheus/client_golang/prometheus"

func (ix *Indexer) docCounter(outcome string) prometheus.Counter {
	if ix.deps.Metrics == nil {
		return nil
	}
	return ix.deps.Metrics.Documents.WithLabelValues(outcome)
}

func (ix *Indexer) chunkCounter(outcome string) prometheus.Counter {
	if ix.deps.Metrics == nil {
		return nil
	}
	return ix.deps.Metrics.Chunks.WithLabelValues(outcome)
}

func (ix *Indexer) batchCounter(outcome string) prometheus.Counter {
	if ix.deps.Metrics == nil {
		return nil
	}
	return ix.deps.Metrics.UploadBatches.WithLabelValues(outcome)
}

func (ix *Indexer) count(c prometheus.Counter, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Add(float64(n))
}
