// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

// Metric is the distance function of a collection. Smaller is closer for
// every supported metric.
type Metric string

const (
	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "L2"
	// MetricCosine is cosine distance (1 - cosine similarity).
	MetricCosine Metric = "cosine"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricL2, MetricCosine:
		return true
	default:
		return false
	}
}

// IndexParams describes the collection schema and the ANN index build.
// Backends use the fields that apply to them and record the rest.
type IndexParams struct {
	Dimension int
	Metric    Metric

	// Type names the index family (e.g. "IVF_FLAT", "HNSW", "FLAT").
	Type string

	// IVF parameters.
	NList  int
	NProbe int

	// HNSW parameters.
	M           int
	EfConstruct int
}

// Hit is a single k-NN result.
type Hit struct {
	ID       string
	Distance float32
}

// Record pairs a vector id with the image it was computed from.
type Record struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}
