package prommetrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-relay/core"
)

const DefaultNamespace = "go_relay"

// Recorder implements core.MetricsRecorder on top of a Prometheus registry.
// Each metric name gets one vector; its label set is fixed by the first
// observation and later tags outside that set are dropped.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*counterVec
	histograms map[string]*histogramVec
	onError    func(name string, err error)
}

type counterVec struct {
	labels []string
	vec    *prometheus.CounterVec
}

type histogramVec struct {
	labels []string
	vec    *prometheus.HistogramVec
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

// WithBuckets overrides histogram buckets. The default is prometheus.DefBuckets.
func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// WithErrorHandler receives registration failures, which are otherwise ignored.
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(r *Recorder) {
		r.onError = fn
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		namespace:  DefaultNamespace,
		buckets:    prometheus.DefBuckets,
		counters:   map[string]*counterVec{},
		histograms: map[string]*histogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	counter, err := r.counter(name, tags)
	if err != nil {
		r.reportError(name, err)
		return
	}
	counter.vec.WithLabelValues(labelValues(counter.labels, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram, err := r.histogram(name, tags)
	if err != nil {
		r.reportError(name, err)
		return
	}
	histogram.vec.WithLabelValues(labelValues(histogram.labels, tags)...).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*counterVec, error) {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil, fmt.Errorf("prommetrics: metric name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[metricName]; ok {
		return existing, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName,
		Help: "Relay counter " + strings.TrimSpace(name),
	}, labels)
	if err := r.register(vec); err != nil {
		return nil, err
	}
	entry := &counterVec{labels: labels, vec: vec}
	r.counters[metricName] = entry
	return entry, nil
}

func (r *Recorder) histogram(name string, tags map[string]string) (*histogramVec, error) {
	metricName := r.metricName(name)
	if metricName == "" {
		return nil, fmt.Errorf("prommetrics: metric name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[metricName]; ok {
		return existing, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricName,
		Help:    "Relay histogram " + strings.TrimSpace(name),
		Buckets: r.buckets,
	}, labels)
	if err := r.register(vec); err != nil {
		return nil, err
	}
	entry := &histogramVec{labels: labels, vec: vec}
	r.histograms[metricName] = entry
	return entry, nil
}

func (r *Recorder) register(collector prometheus.Collector) error {
	if err := r.registerer.Register(collector); err != nil {
		return fmt.Errorf("prommetrics: register collector: %w", err)
	}
	return nil
}

func (r *Recorder) reportError(name string, err error) {
	if r.onError != nil {
		r.onError(name, err)
	}
}

func (r *Recorder) metricName(name string) string {
	base := sanitizeName(name)
	if base == "" {
		return ""
	}
	if r.namespace == "" {
		return base
	}
	return r.namespace + "_" + base
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for key := range tags {
		label := sanitizeName(key)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		names = append(names, label)
	}
	sort.Strings(names)
	return names
}

func labelValues(labels []string, tags map[string]string) []string {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[sanitizeName(key)] = value
	}
	values := make([]string, len(labels))
	for i, label := range labels {
		values[i] = normalized[label]
	}
	return values
}

// sanitizeName maps dotted relay metric names onto the Prometheus charset.
func sanitizeName(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

var _ core.MetricsRecorder = (*Recorder)(nil)
