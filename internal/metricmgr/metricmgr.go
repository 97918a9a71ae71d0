package metricmgr

import (
	"errors"
	"log"
	"sync/atomic"
)

type MetricMgr interface {
	// Increment metric
	IncrementMetric(metric Metric, value int32) error
	// Decrement metric
	DecrementMetric(metric Metric, value int32) error
	// Retreive Metric
	GetMetric(metric Metric) (int32, bool)
	// all metrics with their current values
	Snapshot() map[Metric]int32
	// set metric
	setMetric(metric Metric, ptr *int32) error
}

type _MetricMgr struct {
	metrics map[Metric]*int32
}

// Init returns a MetricMgr with every generator metric set to 0.
func Init() MetricMgr {
	metricMgr := NewMetricMgr()
	for _, metric := range allMetrics {
		value := int32(0)
		metricMgr.setMetric(metric, &value)
	}
	return metricMgr
}

func NewMetricMgr() MetricMgr {
	return &_MetricMgr{
		metrics: make(map[Metric]*int32),
	}
}

func (m *_MetricMgr) IncrementMetric(metric Metric, value int32) error {
	if _, ok := m.GetMetric(metric); !ok {
		return errors.New("metric " + string(metric) + " not found")
	}
	atomic.AddInt32(m.metrics[metric], value)
	return nil
}

func (m *_MetricMgr) DecrementMetric(metric Metric, value int32) error {
	if _, ok := m.GetMetric(metric); !ok {
		return errors.New("metric " + string(metric) + " not found")
	}
	atomic.AddInt32(m.metrics[metric], -value)
	return nil
}

func (m *_MetricMgr) GetMetric(metric Metric) (int32, bool) {
	if _, ok := m.metrics[metric]; !ok {
		log.Printf("Metric %s not found\n", metric)
		return int32(0), false
	}
	return atomic.LoadInt32(m.metrics[metric]), true
}

func (m *_MetricMgr) Snapshot() map[Metric]int32 {
	out := make(map[Metric]int32, len(m.metrics))
	for metric, ptr := range m.metrics {
		out[metric] = atomic.LoadInt32(ptr)
	}
	return out
}

func (m *_MetricMgr) setMetric(metric Metric, ptr *int32) error {
	if _, ok := m.metrics[metric]; ok {
		return errors.New("metric " + string(metric) + " already exists")
	}
	m.metrics[metric] = ptr
	return nil
}
