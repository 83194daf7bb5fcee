package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tale_server_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	refreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tale_server_token_refreshes_total",
		Help: "Total number of successful token refreshes.",
	})

	storiesGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tale_server_stories_generated_total",
		Help: "Total number of stories generated from a prompt.",
	})

	storyContinuationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tale_server_story_continuations_total",
		Help: "Total number of story segments generated via continue.",
	})

	storySharesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tale_server_story_shares_total",
		Help: "Total number of share links requested.",
	})
)
