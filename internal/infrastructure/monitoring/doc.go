/*
Package monitoring provides metrics collection.

# Overview

Prometheus metrics for the observable service: HTTP requests, managed
object registrations, topic traffic, archive operations, webhook
deliveries and WebSocket connections. Each Metrics value owns a private
prometheus.Registry.

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Expose the registry
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Record domain metrics
	metrics.SetManagedObjects(5)
	metrics.IncTopicPublishes("sensors/kitchen")
*/
package monitoring
