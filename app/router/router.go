package router

import (
	"net/http"

	"travel-quotes-backoffice/app/controller"
)

type Controllers struct {
	Quote   *controller.QuoteController
	Package *controller.PackageController
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func SetupRoutes(controllers *Controllers) {
	// Ping endpoint
	http.HandleFunc("/ping", pingHandler)

	// Create quote
	http.HandleFunc("/admin/quotes", controllers.Quote.CreateQuote)

	// Quote by id and quote session actions
	http.HandleFunc("/admin/quotes/", func(w http.ResponseWriter, r *http.Request) {
		quoteID, action, err := controller.ParseQuoteID(r.URL.Path)
		if err != nil {
			http.Error(w, "Invalid quote id", http.StatusBadRequest)
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.GetQuote(w, r, quoteID)
		case "history":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.GetPriceHistory(w, r, quoteID)
		case "sync":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.GetSyncState(w, r, quoteID)
		case "parameters":
			if r.Method != http.MethodPut {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.UpdateParameters(w, r, quoteID)
		case "price":
			if r.Method != http.MethodPut {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.SetPrice(w, r, quoteID)
		case "link-package":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.LinkPackage(w, r, quoteID)
		case "unlink-package":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.UnlinkPackage(w, r, quoteID)
		case "recalculate":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.Recalculate(w, r, quoteID)
		case "reset-price":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.ResetPrice(w, r, quoteID)
		case "mark-custom":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.MarkCustom(w, r, quoteID)
		case "close-session":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Quote.CloseSession(w, r, quoteID)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})

	// List packages
	http.HandleFunc("/admin/packages", controllers.Package.ListPackages)

	// Package by id and resolution preview
	http.HandleFunc("/admin/packages/", func(w http.ResponseWriter, r *http.Request) {
		packageID, action, err := controller.ParsePackageID(r.URL.Path)
		if err != nil {
			http.Error(w, "Invalid package id", http.StatusBadRequest)
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Package.GetPackage(w, r, packageID)
		case "resolve":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			controllers.Package.ResolvePreview(w, r, packageID)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})
}
