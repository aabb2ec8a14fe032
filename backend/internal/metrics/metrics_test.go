package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRecord("role_fact", "ok")
	m.IncRecord("role_fact", "ok")
	m.IncRecord("role_fact", "skipped")
	m.AddEntities("person", "created", 3)
	m.AddEntities("person", "merged", 0)
	m.ObserveUpsert("person", time.Millisecond, nil)
	m.ObserveUpsert("person", time.Millisecond, errors.New("down"))
	m.SetFrontierPending(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("role_fact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("role_fact", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Entities.WithLabelValues("person", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Upserts.WithLabelValues("person", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.FrontierPending))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRecord("person_mention", "ok")
		m.AddEntities("company", "created", 1)
		m.ObserveUpsert("family", time.Second, nil)
		m.SetFrontierPending(1)
		m.ObserveBatch("wikidata", time.Second)
	})
}
