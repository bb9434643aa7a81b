package endpoints

import (
	"github.com/berea-study/berea/internal/api"
)

// All returns all endpoint instances in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Public study endpoints
		&SearchEndpoint{},
		&TrackEndpoint{},
		&ListQuestionsEndpoint{},
		&GetQuestionEndpoint{},
		&RecentSearchesEndpoint{},
		&SimilarTopicsEndpoint{},
		&SitemapEndpoint{},

		// Admin endpoints
		&AdminControlEndpoint{},
		&AdminStatusEndpoint{},
		&AdminStatsEndpoint{},
		&DeleteQuestionEndpoint{},
		&AdminLLMCallsEndpoint{},

		// Scheduler endpoint
		&CronTickEndpoint{},
	}
}
