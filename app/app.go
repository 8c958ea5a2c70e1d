package app

import (
	"fmt"

	"travel-quotes-backoffice/app/controller"
	"travel-quotes-backoffice/app/router"
	"travel-quotes-backoffice/db"
	"travel-quotes-backoffice/repository"
	"travel-quotes-backoffice/service"
)

// Initialize initializes the application
func Initialize() error {
	// Initialize database connection
	if err := db.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	quoteRepo := repository.NewQuoteRepository()
	packageRepo := repository.NewPackageRepository()

	// Price lookup: package store behind the cacheable, coalescing client
	priceSource := service.NewPackageStorePriceSource(packageRepo)
	lookupClient := service.NewPriceLookupClient(priceSource, service.DefaultLookupConfig())

	// One sync engine per open quote-editing session
	sessionManager := service.NewQuoteSessionManager(lookupClient, quoteRepo, packageRepo, service.DefaultEngineConfig())

	// Create controllers
	controllers := &router.Controllers{
		Quote:   controller.NewQuoteController(quoteRepo, sessionManager),
		Package: controller.NewPackageController(packageRepo),
	}

	// Setup routes using standard http router
	router.SetupRoutes(controllers)

	return nil
}
