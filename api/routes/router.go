package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bulkquote-backend/api/controllers"
	"github.com/angelmondragon/bulkquote-backend/api/middleware"
	"github.com/angelmondragon/bulkquote-backend/internal/fulfillment"
	"github.com/angelmondragon/bulkquote-backend/internal/negotiation"
	"github.com/angelmondragon/bulkquote-backend/internal/notifications"
	"github.com/angelmondragon/bulkquote-backend/internal/offers"
	"github.com/angelmondragon/bulkquote-backend/internal/requests"
	"github.com/angelmondragon/bulkquote-backend/pkg/config"
	"github.com/angelmondragon/bulkquote-backend/pkg/db"
	"github.com/angelmondragon/bulkquote-backend/pkg/logger"
	"github.com/angelmondragon/bulkquote-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Requests      requests.Service
	Offers        offers.Service
	Negotiation   negotiation.Service
	Fulfillment   fulfillment.Service
	Notifications notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})

	writePolicy := middleware.NewRateLimitPolicy(
		"write",
		cfg.RateLimit.WriteWindow,
		cfg.RateLimit.WriteLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))
		r.Use(middleware.RateLimit(writePolicy, p.Redis, logg))

		r.Route("/bulk-orders", func(r chi.Router) {
			r.Post("/", controllers.CreateBulkOrder(p.Requests, logg))
			r.Get("/", controllers.ListBulkOrders(p.Requests, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", controllers.GetBulkOrder(p.Requests, logg))
				r.Delete("/", controllers.DeleteBulkOrder(p.Requests, logg))
				r.Get("/offers", controllers.ListOffers(p.Offers, logg))
				r.Post("/offers", controllers.SubmitOffer(p.Offers, logg))
				r.Post("/offers/{offerId}/accept", controllers.AcceptOffer(p.Negotiation, logg))
				r.Post("/payments/confirm", controllers.ConfirmPayment(p.Negotiation, logg))
				r.Put("/fulfillment", controllers.AdvanceFulfillment(p.Fulfillment, logg))
			})
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/{offerId}", controllers.GetOffer(p.Offers, logg))
			r.Put("/{offerId}", controllers.UpdateOffer(p.Offers, logg))
			r.Delete("/{offerId}", controllers.WithdrawOffer(p.Offers, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	return r
}

func readinessDeps(p RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["postgres"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	return deps
}
