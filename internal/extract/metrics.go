package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackscan_images_processed_total",
			Help: "Total number of processed images by outcome",
		},
		[]string{"outcome", "stage"}, // outcome: success, fail
	)

	imageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackscan_image_processing_duration_seconds",
			Help:    "Per-image decode, recognition and parse duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackscan_batch_size",
			Help:    "Number of images per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackscan_batch_duration_seconds",
			Help:    "Batch extraction duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	workersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackscan_workers_busy",
			Help: "Number of workers currently processing an image",
		},
	)
)

func recordOutcome(o Outcome, seconds float64) {
	imageProcessingDuration.Observe(seconds)
	if o.OK() {
		imagesProcessedTotal.WithLabelValues("success", "").Inc()
		return
	}
	imagesProcessedTotal.WithLabelValues("fail", o.Stage).Inc()
}
