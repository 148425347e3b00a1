package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodbuddy/api/internal/payments"
	"github.com/foodbuddy/api/internal/platform/config"
	"github.com/foodbuddy/api/internal/repositories"
	"github.com/foodbuddy/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Cart          services.CartService
	Orders        services.OrderService
	Delivery      services.DeliveryService
	Payments      services.PaymentService
	Notifications services.NotificationService
	System        services.SystemService
}

// Deps carries the externally constructed collaborators the container wires
// together. Registry and CartStore are required; Gateway and Publisher are
// optional and disable their features when absent.
type Deps struct {
	Config    config.Config
	Registry  repositories.Registry
	CartStore repositories.CartStore
	Gateway   payments.Gateway
	Publisher services.OrderEventPublisher
	Build     services.BuildInfo
	Clock     func() time.Time
	Logger    services.ServiceLogger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependency graph. Tests can supply
// in-memory registries and stub gateways through Deps.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.CartStore == nil {
		return nil, errors.New("cart store is required")
	}

	svc, err := buildServices(ctx, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases repository clients and other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, deps Deps) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := deps.Config
	reg := deps.Registry

	pricing := services.PricingPolicy{
		Currency:         cfg.Stripe.Currency,
		TaxRateBP:        cfg.Pricing.TaxRateBP,
		DeliveryFee:      cfg.Pricing.DeliveryFee,
		MaxItemQuantity:  cfg.Pricing.MaxItemQuantity,
		EstimatedMinutes: cfg.Pricing.EstimatedDeliveryMinutes,
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Store:   deps.CartStore,
		Menu:    reg.MenuItems(),
		Pricing: pricing,
		Clock:   clock,
		Logger:  deps.Logger,
	})
	if err != nil {
		return svc, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Repository: reg.Notifications(),
		Users:      reg.Users(),
		Clock:      clock,
		Logger:     deps.Logger,
	})
	if err != nil {
		return svc, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: reg.Orders(),
		Menu:       reg.MenuItems(),
		Carts:      cartSvc,
		Notifier:   notificationSvc,
		Publisher:  deps.Publisher,
		Pricing:    pricing,
		Clock:      clock,
		Logger:     deps.Logger,
	})
	if err != nil {
		return svc, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	deliverySvc, err := services.NewDeliveryService(services.DeliveryServiceDeps{
		Repository:       reg.Orders(),
		Orders:           orderSvc,
		EarningsPerOrder: cfg.Pricing.DeliveryEarnings,
		Clock:            clock,
		Logger:           deps.Logger,
	})
	if err != nil {
		return svc, fmt.Errorf("build delivery service: %w", err)
	}
	svc.Delivery = deliverySvc

	if deps.Gateway != nil {
		paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
			Orders:        orderSvc,
			Gateway:       deps.Gateway,
			MinimumCharge: cfg.Stripe.MinimumChargeAmount,
			Currency:      cfg.Stripe.Currency,
			Clock:         clock,
			Logger:        deps.Logger,
		})
		if err != nil {
			return svc, fmt.Errorf("build payment service: %w", err)
		}
		svc.Payments = paymentSvc
	}

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            clock,
		Build:            deps.Build,
	})
	if err != nil {
		return svc, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
