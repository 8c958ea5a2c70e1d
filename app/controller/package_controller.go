package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"travel-quotes-backoffice/models"
	"travel-quotes-backoffice/pricing"
	"travel-quotes-backoffice/repository"
	"travel-quotes-backoffice/service"
)

// PackageController handles HTTP reads of pricing packages and the direct
// price-resolution preview
type PackageController struct {
	packages repository.PackageRepositoryInterface
}

// NewPackageController creates a new PackageController
func NewPackageController(packages repository.PackageRepositoryInterface) *PackageController {
	return &PackageController{packages: packages}
}

// ListPackages handles GET /admin/packages
func (c *PackageController) ListPackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := context.Background()
	packages, err := c.packages.List(ctx)
	if err != nil {
		log.Printf("❌ ListPackages: Error fetching packages: %v", err)
		http.Error(w, fmt.Sprintf("Failed to fetch packages: %v", err), http.StatusInternalServerError)
		return
	}
	if packages == nil {
		packages = []models.PricingPackage{}
	}

	writeJSON(w, http.StatusOK, packages)
}

// GetPackage handles GET /admin/packages/:id
func (c *PackageController) GetPackage(w http.ResponseWriter, r *http.Request, packageID int64) {
	ctx := context.Background()
	pkg, err := c.packages.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			http.Error(w, "Package not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ GetPackage: Error fetching package %d: %v", packageID, err)
		http.Error(w, fmt.Sprintf("Failed to fetch package: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, pkg)
}

// ResolvePreview handles POST /admin/packages/:id/resolve. It runs the
// matrix resolution directly for a what-if preview without touching any
// quote. Failures are returned as classified errors so the UI shows the
// same taxonomy as the sync engine.
// Example request: {"numberOfPeople": 7, "numberOfNights": 2, "arrivalDate": "2025-01-10"}
func (c *PackageController) ResolvePreview(w http.ResponseWriter, r *http.Request, packageID int64) {
	log.Printf("📥 ResolvePreview: Received %s request to %s", r.Method, r.URL.Path)

	var req models.UpdateParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ ResolvePreview: Failed to decode request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	arrival, err := models.ParseDateOnly(req.ArrivalDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid arrivalDate: %v", err), http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	pkg, err := c.packages.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			http.Error(w, "Package not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ ResolvePreview: Error fetching package %d: %v", packageID, err)
		http.Error(w, fmt.Sprintf("Failed to fetch package: %v", err), http.StatusInternalServerError)
		return
	}

	params := models.BookingParameters{
		NumberOfPeople: req.NumberOfPeople,
		NumberOfNights: req.NumberOfNights,
		ArrivalDate:    arrival.Time,
	}

	resolution, err := pricing.Resolve(pkg, params)
	if err != nil {
		classified := service.Classify(err)
		log.Printf("❌ ResolvePreview: package %d code=%s context=%v", packageID, classified.Code, classified.Context)
		writeJSON(w, http.StatusUnprocessableEntity, classified)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}

// ParsePackageID extracts the package id from a path like /admin/packages/7/resolve
func ParsePackageID(path string) (int64, string, error) {
	trimmed := strings.TrimPrefix(path, "/admin/packages/")
	parts := strings.SplitN(trimmed, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid package id %q", parts[0])
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}
