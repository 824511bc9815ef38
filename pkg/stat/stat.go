// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stat provides prometheus/streamz style metrics (Val type) for
// instrumenting the fuzzer, plus a global default registry. Values are
// cheap atomic counters; prometheus export and histogram sampling hang
// off the same objects.
package stat

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

type Val struct {
	name string
	desc string
	v    atomic.Int64
}

func (val *Val) Name() string {
	return val.name
}

func (val *Val) Add(v int) {
	val.v.Add(int64(v))
}

func (val *Val) Val() int {
	return int(val.v.Load())
}

type set struct {
	mu   sync.Mutex
	vals map[string]*Val
}

var global = &set{vals: make(map[string]*Val)}

// New registers a new metric in the global registry and mirrors it as a
// prometheus counter function, so an embedding process can export all
// fuzzer metrics through its normal /metrics handler.
func New(name, desc string) *Val {
	global.mu.Lock()
	defer global.mu.Unlock()
	if v, ok := global.vals[name]; ok {
		return v
	}
	v := &Val{name: name, desc: desc}
	global.vals[name] = v
	prometheus.DefaultRegisterer.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: promName(name),
			Help: desc,
		},
		func() float64 { return float64(v.Val()) },
	))
	return v
}

type UI struct {
	Name  string
	Desc  string
	Value int
}

// Collect returns a name-sorted snapshot of all registered metrics.
func Collect() []UI {
	global.mu.Lock()
	defer global.mu.Unlock()
	var res []UI
	for _, v := range global.vals {
		res = append(res, UI{Name: v.name, Desc: v.desc, Value: v.Val()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func promName(name string) string {
	res := []byte("textfuzz_")
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			res = append(res, ch)
		case ch >= 'A' && ch <= 'Z':
			res = append(res, ch+'a'-'A')
		default:
			res = append(res, '_')
		}
	}
	return string(res)
}

// Sample tracks a stream of measurements (e.g. per-execution wall time)
// in a streaming histogram.
type Sample struct {
	mu   sync.Mutex
	hist *gohistogram.NumericHistogram
}

const histogramBuckets = 64

func NewSample() *Sample {
	return &Sample{hist: gohistogram.NewHistogram(histogramBuckets)}
}

func (s *Sample) Add(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Add(v)
}

func (s *Sample) Quantile(q float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Quantile(q)
}

func (s *Sample) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("p50=%.1f p90=%.1f p99=%.1f",
		s.hist.Quantile(0.5), s.hist.Quantile(0.9), s.hist.Quantile(0.99))
}
