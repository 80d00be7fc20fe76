package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the service.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec

	MemoriesCreated     prometheus.Counter
	MemoriesDeleted     prometheus.Counter
	DescriptionsEdited  prometheus.Counter
	StorageReadErrors   prometheus.Counter
	StorageWriteErrors  prometheus.Counter
	QuarantinedBlobs    prometheus.Counter
	CaptureFailures     *prometheus.CounterVec
	GallerySaveFailures prometheus.Counter
}

// NewCollector creates the metrics on a private registry, so tests can
// create as many collectors as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		MemoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_created_total",
			Help:      "Memories appended to the collection",
		}),
		MemoriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_deleted_total",
			Help:      "Memories removed from the collection",
		}),
		DescriptionsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptions_edited_total",
			Help:      "Description edits that changed a stored memory",
		}),
		StorageReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_read_errors_total",
			Help:      "Reads of the collection that failed or found undecodable data",
		}),
		StorageWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_write_errors_total",
			Help:      "Writes of the collection that failed",
		}),
		QuarantinedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quarantined_blobs_total",
			Help:      "Undecodable collections moved aside before being overwritten",
		}),
		CaptureFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_failures_total",
				Help:      "Failed device capability calls during capture",
			},
			[]string{"capability"},
		),
		GallerySaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gallery_save_failures_total",
			Help:      "Captures stored but not copied to the gallery",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.MemoriesCreated,
		c.MemoriesDeleted,
		c.DescriptionsEdited,
		c.StorageReadErrors,
		c.StorageWriteErrors,
		c.QuarantinedBlobs,
		c.CaptureFailures,
		c.GallerySaveFailures,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
