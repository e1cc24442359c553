package worker

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	jobName = "bedtime_story_worker"
)

var (
	// Общий реестр для всех метрик этого воркера. Используем локальный
	// реестр, а не prometheus.DefaultRegistry, чтобы Pushgateway получал
	// только метрики воркера.
	registry = prometheus.NewRegistry()

	tasksReceived = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "bedtime_worker_tasks_received_total",
			Help: "Total number of generation tasks received by the worker.",
		},
	)
	tasksFailed = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedtime_worker_tasks_failed_total",
			Help: "Total number of tasks failed, partitioned by failure reason.",
		},
		[]string{"reason"},
	)
	tasksSucceeded = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "bedtime_worker_tasks_succeeded_total",
			Help: "Total number of tasks successfully processed.",
		},
	)
	taskDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bedtime_worker_task_duration_seconds",
			Help:    "Histogram of full task processing durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	storiesFinished = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedtime_worker_stories_finished_total",
			Help: "Total number of finished stories, partitioned by workflow outcome.",
		},
		[]string{"outcome"},
	)
	storyQualityScore = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bedtime_worker_story_quality_score",
			Help:    "Histogram of selected story quality scores.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
	storyAttempts = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bedtime_worker_story_generation_attempts",
			Help:    "Histogram of generation attempts spent per story.",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		},
	)
	tokensUsed = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "bedtime_worker_ai_tokens_used_total",
			Help: "Total number of AI tokens used for generation.",
		},
	)

	pusher *push.Pusher

	groupingKey map[string]string
)

// MetricsHandler отдает метрики воркера для scrape-эндпоинта /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InitMetricsPusher инициализирует клиент Pushgateway.
func InitMetricsPusher(pushgatewayURL string) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
		log.Printf("[Metrics] Warning: could not get hostname: %v", err)
	}
	pid := os.Getpid()
	instanceID := fmt.Sprintf("%s-%d", hostname, pid)

	groupingKey = map[string]string{
		"instance": instanceID,
	}

	log.Printf("[Metrics] Initializing Pushgateway pusher for job '%s' with instance '%s' to %s", jobName, instanceID, pushgatewayURL)

	pusher = push.New(pushgatewayURL, jobName).Gatherer(registry).Grouping("instance", instanceID)

	// Сразу отправляем нулевые метрики, чтобы проверить соединение
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	log.Printf("[Metrics] Initial push to Pushgateway successful.")
	return nil
}

// StartMetricsPusher запускает горутину для периодической отправки метрик.
func StartMetricsPusher(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if pusher == nil {
				ticker.Stop()
				log.Println("[Metrics] Pusher is nil, stopping periodic push.")
				return
			}
			_ = pushMetrics()
		}
	}()
	log.Printf("[Metrics] Started periodic pusher with interval %v", interval)
}

// pushMetrics отправляет текущие метрики в Pushgateway.
func pushMetrics() error {
	if pusher == nil {
		return errors.New("pusher not initialized")
	}
	if err := pusher.Push(); err != nil {
		log.Printf("[Metrics] Error pushing metrics to Pushgateway: %v", err)
		return err
	}
	return nil
}

// PushMetricsNow принудительно отправляет метрики (в конце обработки задачи).
func PushMetricsNow() error {
	return pushMetrics()
}

func metricsIncrementTasksReceived() {
	tasksReceived.Inc()
}

func metricsIncrementTaskFailed(reason string) {
	tasksFailed.WithLabelValues(reason).Inc()
}

func metricsIncrementTaskSucceeded() {
	tasksSucceeded.Inc()
}

func metricsRecordTaskDuration(d time.Duration) {
	taskDuration.Observe(d.Seconds())
}

func metricsRecordStoryOutcome(outcome string) {
	storiesFinished.WithLabelValues(outcome).Inc()
}

func metricsRecordStoryQuality(score int, attempts int) {
	storyQualityScore.Observe(float64(score))
	storyAttempts.Observe(float64(attempts))
}

func metricsAddTokensUsed(count float64) {
	tokensUsed.Add(count)
}

// CleanupMetrics удаляет метрики этого инстанса из Pushgateway.
// Должна вызываться через defer в main.
func CleanupMetrics() {
	if pusher == nil {
		log.Println("[Metrics] Cleanup skipped: Pusher not initialized.")
		return
	}

	log.Printf("[Metrics] Deleting metrics from Pushgateway for job '%s', grouping key: %v", jobName, groupingKey)
	if err := pusher.Delete(); err != nil {
		log.Printf("[Metrics] Error deleting metrics from Pushgateway: %v", err)
	} else {
		log.Printf("[Metrics] Successfully deleted metrics from Pushgateway.")
	}
}
