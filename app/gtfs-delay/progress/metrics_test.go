package progress

import (
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ItemSettled(t *testing.T) {
	is := is.New(t)
	c := NewCollector()
	c.ItemSettled("ingest", false, 250*time.Millisecond)
	c.ItemSettled("ingest", false, time.Second)
	c.ItemSettled("ingest", true, time.Second)
	c.ItemSettled("consolidate", false, time.Second)

	is.Equal(testutil.ToFloat64(c.ItemsSettled.WithLabelValues("ingest", "success")), 2.0)
	is.Equal(testutil.ToFloat64(c.ItemsSettled.WithLabelValues("ingest", "failure")), 1.0)
	is.Equal(testutil.ToFloat64(c.ItemsSettled.WithLabelValues("consolidate", "success")), 1.0)
	is.Equal(testutil.CollectAndCount(c.ItemDuration), 2)
}

func TestCollector_Recorders(t *testing.T) {
	is := is.New(t)
	c := NewCollector()
	c.ObservationsInserted(500)
	c.ObservationsInserted(12)
	c.ObservationsDeleted(40)
	c.CanonicalKept(7)
	c.TripsUnresolved(2)

	is.Equal(testutil.ToFloat64(c.InsertedTotal), 512.0)
	is.Equal(testutil.ToFloat64(c.DeletedTotal), 40.0)
	is.Equal(testutil.ToFloat64(c.CanonicalTotal), 7.0)
	is.Equal(testutil.ToFloat64(c.UnresolvedTotal), 2.0)
}
