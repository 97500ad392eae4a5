package controllers

import (
	"errors"
	"net/http"
	"time"

	"parcel-service/models"
	"parcel-service/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ParcelController handles HTTP requests for parcel bookings.
type ParcelController struct {
	Repo   repository.ParcelRepository
	Logger *zap.Logger
}

func NewParcelController(repo repository.ParcelRepository, logger *zap.Logger) *ParcelController {
	return &ParcelController{Repo: repo, Logger: logger}
}

// GetParcels handles GET /parcels?email= and lists bookings, newest first.
func (pc *ParcelController) GetParcels(c *gin.Context) {
	email := c.Query("email")

	parcels, err := pc.Repo.Find(c.Request.Context(), email)
	if err != nil {
		pc.Logger.Error("Failed to list parcels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch parcels"})
		return
	}
	c.JSON(http.StatusOK, parcels)
}

// GetParcelByID handles GET /parcels/:id
func (pc *ParcelController) GetParcelByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid parcel id"})
		return
	}

	parcel, err := pc.Repo.FindByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Parcel not found"})
		return
	}
	if err != nil {
		pc.Logger.Error("Failed to fetch parcel", zap.String("parcel_id", id.Hex()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch parcel"})
		return
	}
	c.JSON(http.StatusOK, parcel)
}

// CreateParcel handles POST /parcels. The booking payload is taken as-is;
// the server owns createdAt, the initial payment status, and the tracking id.
func (pc *ParcelController) CreateParcel(c *gin.Context) {
	var parcel models.Parcel
	if err := c.ShouldBindJSON(&parcel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	parcel.ID = primitive.NilObjectID
	parcel.CreatedAt = time.Now().UTC()
	parcel.PaymentStatus = models.PaymentStatusUnpaid
	parcel.TrackingID = ""

	id, err := pc.Repo.Create(c.Request.Context(), &parcel)
	if err != nil {
		pc.Logger.Error("Failed to create parcel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save parcel"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Parcel added successfully!",
		"insertedId": id.Hex(),
	})
}

// DeleteParcel handles DELETE /parcels/:id
func (pc *ParcelController) DeleteParcel(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid parcel id"})
		return
	}

	deleted, err := pc.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		pc.Logger.Error("Failed to delete parcel", zap.String("parcel_id", id.Hex()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete parcel"})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Parcel not found", "deletedCount": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Parcel deleted successfully!",
		"deletedCount": deleted,
	})
}
