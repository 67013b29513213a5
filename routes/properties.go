package routes

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"hoy-server/models"
	"hoy-server/storage"
	"hoy-server/utils"
)

// Properties serves listing CRUD, search and host calendar blocks.
type Properties struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Cache    *storage.Cache
}

func NewProperties(db *gorm.DB, validate *validator.Validate, cache *storage.Cache) *Properties {
	return &Properties{DB: db, Validate: validate, Cache: cache}
}

// listingPayload is the wire shape for creating a listing. Older client
// builds send name, photos and pricePerNight; canonical() folds those into
// the current field names in exactly one place, so handlers and everything
// below them see only the canonical shape.
type listingPayload struct {
	Title         string   `json:"title"`
	Name          string   `json:"name"`
	Images        []string `json:"images"`
	Photos        []string `json:"photos"`
	NightlyPrice  float64  `json:"nightlyPrice"`
	PricePerNight float64  `json:"pricePerNight"`

	Description        string   `json:"description"`
	PropertyType       string   `json:"propertyType"`
	AddressLine1       string   `json:"addressLine1"`
	AddressLine2       string   `json:"addressLine2"`
	City               string   `json:"city"`
	Region             string   `json:"region"`
	Country            string   `json:"country"`
	Lat                float32  `json:"lat"`
	Lng                float32  `json:"lng"`
	Capacity           int      `json:"capacity"`
	Bedrooms           int      `json:"bedrooms"`
	Beds               int      `json:"beds"`
	Bathrooms          float32  `json:"bathrooms"`
	CleaningFee        float64  `json:"cleaningFee"`
	ServiceFee         float64  `json:"serviceFee"`
	TaxRate            float64  `json:"taxRate"`
	Currency           string   `json:"currency"`
	Amenities          []string `json:"amenities"`
	HouseRules         string   `json:"houseRules"`
	CancellationPolicy string   `json:"cancellationPolicy"`
	CheckInTime        string   `json:"checkInTime"`
	CheckOutTime       string   `json:"checkOutTime"`
	BookingMode        string   `json:"bookingMode"`
}

// canonical maps legacy field names onto the validated input. A canonical
// field always wins over its legacy twin.
func (p listingPayload) canonical() CreateListingInput {
	in := CreateListingInput{
		Title:              p.Title,
		Images:             p.Images,
		NightlyPrice:       p.NightlyPrice,
		Description:        p.Description,
		PropertyType:       p.PropertyType,
		AddressLine1:       p.AddressLine1,
		AddressLine2:       p.AddressLine2,
		City:               p.City,
		Region:             p.Region,
		Country:            p.Country,
		Lat:                p.Lat,
		Lng:                p.Lng,
		Capacity:           p.Capacity,
		Bedrooms:           p.Bedrooms,
		Beds:               p.Beds,
		Bathrooms:          p.Bathrooms,
		CleaningFee:        p.CleaningFee,
		ServiceFee:         p.ServiceFee,
		TaxRate:            p.TaxRate,
		Currency:           p.Currency,
		Amenities:          p.Amenities,
		HouseRules:         p.HouseRules,
		CancellationPolicy: p.CancellationPolicy,
		CheckInTime:        p.CheckInTime,
		CheckOutTime:       p.CheckOutTime,
		BookingMode:        p.BookingMode,
	}
	if in.Title == "" {
		in.Title = p.Name
	}
	if len(in.Images) == 0 {
		in.Images = p.Photos
	}
	if in.NightlyPrice == 0 {
		in.NightlyPrice = p.PricePerNight
	}
	return in
}

type CreateListingInput struct {
	Title              string   `json:"title" validate:"required,max=256"`
	Description        string   `json:"description" validate:"max=10000"`
	PropertyType       string   `json:"propertyType" validate:"required,oneof=entire_place private_room shared_room"`
	AddressLine1       string   `json:"addressLine1" validate:"required,max=512"`
	AddressLine2       string   `json:"addressLine2" validate:"max=512"`
	City               string   `json:"city" validate:"required,max=128"`
	Region             string   `json:"region" validate:"max=128"`
	Country            string   `json:"country" validate:"required,max=128"`
	Lat                float32  `json:"lat" validate:"gte=-90,lte=90"`
	Lng                float32  `json:"lng" validate:"gte=-180,lte=180"`
	Capacity           int      `json:"capacity" validate:"required,gte=1,lte=50"`
	Bedrooms           int      `json:"bedrooms" validate:"gte=0,lte=50"`
	Beds               int      `json:"beds" validate:"gte=0,lte=100"`
	Bathrooms          float32  `json:"bathrooms" validate:"gte=0,lte=50"`
	NightlyPrice       float64  `json:"nightlyPrice" validate:"required,gt=0"`
	CleaningFee        float64  `json:"cleaningFee" validate:"gte=0"`
	ServiceFee         float64  `json:"serviceFee" validate:"gte=0"`
	TaxRate            float64  `json:"taxRate" validate:"gte=0,lte=1"`
	Currency           string   `json:"currency" validate:"omitempty,len=3"`
	Amenities          []string `json:"amenities"`
	HouseRules         string   `json:"houseRules" validate:"max=10000"`
	CancellationPolicy string   `json:"cancellationPolicy" validate:"omitempty,oneof=flexible moderate strict"`
	Images             []string `json:"images"`
	CheckInTime        string   `json:"checkInTime" validate:"omitempty,len=5"`
	CheckOutTime       string   `json:"checkOutTime" validate:"omitempty,len=5"`
	BookingMode        string   `json:"bookingMode" validate:"omitempty,oneof=instant request"`
}

// Create publishes a new listing owned by the caller.
func (r *Properties) Create(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var payload listingPayload
	if err := ctx.ReadJSON(&payload); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	input := payload.canonical()
	if err := r.Validate.Struct(input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	amenitiesJSON, _ := json.Marshal(input.Amenities)
	imagesJSON, _ := json.Marshal(input.Images)

	active := true
	property := models.Property{
		HostID:             claims.ID,
		Title:              input.Title,
		Slug:               slug.Make(input.Title) + "-" + utils.GenerateShortToken(3),
		Description:        input.Description,
		PropertyType:       input.PropertyType,
		AddressLine1:       input.AddressLine1,
		AddressLine2:       input.AddressLine2,
		City:               input.City,
		Region:             input.Region,
		Country:            input.Country,
		Lat:                input.Lat,
		Lng:                input.Lng,
		Capacity:           input.Capacity,
		Bedrooms:           input.Bedrooms,
		Beds:               input.Beds,
		Bathrooms:          input.Bathrooms,
		NightlyPrice:       input.NightlyPrice,
		CleaningFee:        input.CleaningFee,
		ServiceFee:         input.ServiceFee,
		TaxRate:            input.TaxRate,
		Currency:           input.Currency,
		Amenities:          string(amenitiesJSON),
		HouseRules:         input.HouseRules,
		CancellationPolicy: input.CancellationPolicy,
		Images:             string(imagesJSON),
		IsActive:           &active,
		CheckInTime:        input.CheckInTime,
		CheckOutTime:       input.CheckOutTime,
		BookingMode:        input.BookingMode,
	}

	if err := r.DB.Create(&property).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(property)
}

// Get returns one listing with its units and host.
func (r *Properties) Get(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var property models.Property
	if err := r.DB.Preload("Units").Preload("Host").First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	ctx.JSON(property)
}

type SearchPropertiesInput struct {
	LatLow   float32    `json:"latLow" validate:"gte=-90,lte=90"`
	LatHigh  float32    `json:"latHigh" validate:"gte=-90,lte=90"`
	LngLow   float32    `json:"lngLow" validate:"gte=-180,lte=180"`
	LngHigh  float32    `json:"lngHigh" validate:"gte=-180,lte=180"`
	City     string     `json:"city" validate:"max=128"`
	Guests   int        `json:"guests" validate:"gte=0,lte=50"`
	CheckIn  *time.Time `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut"`
}

// Search returns active listings inside a map bounding box, optionally
// narrowed by city, party size and date availability.
func (r *Properties) Search(ctx iris.Context) {
	var input SearchPropertiesInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	q := r.DB.
		Where("lat >= ? AND lat <= ? AND lng >= ? AND lng <= ? AND is_active = true",
			input.LatLow, input.LatHigh, input.LngLow, input.LngHigh)
	if input.City != "" {
		q = q.Where("LOWER(city) = LOWER(?)", input.City)
	}
	if input.Guests > 0 {
		q = q.Where("capacity >= ?", input.Guests)
	}
	if input.CheckIn != nil && input.CheckOut != nil && input.CheckIn.Before(*input.CheckOut) {
		taken := r.DB.Model(&models.Booking{}).Select("property_id").
			Where("status IN ? AND check_in < ? AND check_out > ?",
				conflictStatuses, *input.CheckOut, *input.CheckIn)
		q = q.Where("id NOT IN (?)", taken)
	}

	var properties []models.Property
	if err := q.Preload("Units").Order("rating DESC").Limit(100).Find(&properties).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	ctx.JSON(properties)
}

// ListByHost returns the caller's listings.
func (r *Properties) ListByHost(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var properties []models.Property
	res := r.DB.Preload("Units").
		Where("host_id = ?", claims.ID).Order("created_at DESC").Find(&properties)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(properties)
}

type UpdateListingInput struct {
	Title              *string  `json:"title" validate:"omitempty,max=256"`
	Description        *string  `json:"description" validate:"omitempty,max=10000"`
	NightlyPrice       *float64 `json:"nightlyPrice" validate:"omitempty,gt=0"`
	CleaningFee        *float64 `json:"cleaningFee" validate:"omitempty,gte=0"`
	ServiceFee         *float64 `json:"serviceFee" validate:"omitempty,gte=0"`
	TaxRate            *float64 `json:"taxRate" validate:"omitempty,gte=0,lte=1"`
	Capacity           *int     `json:"capacity" validate:"omitempty,gte=1,lte=50"`
	IsActive           *bool    `json:"isActive"`
	CancellationPolicy *string  `json:"cancellationPolicy" validate:"omitempty,oneof=flexible moderate strict"`
	BookingMode        *string  `json:"bookingMode" validate:"omitempty,oneof=instant request"`
	HouseRules         *string  `json:"houseRules" validate:"omitempty,max=10000"`
	CheckInTime        *string  `json:"checkInTime" validate:"omitempty,len=5"`
	CheckOutTime       *string  `json:"checkOutTime" validate:"omitempty,len=5"`
	Amenities          []string `json:"amenities"`
	Images             []string `json:"images"`
}

// Update applies the fields the host sent and leaves the rest alone.
func (r *Properties) Update(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input UpdateListingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.NightlyPrice != nil {
		updates["nightly_price"] = *input.NightlyPrice
	}
	if input.CleaningFee != nil {
		updates["cleaning_fee"] = *input.CleaningFee
	}
	if input.ServiceFee != nil {
		updates["service_fee"] = *input.ServiceFee
	}
	if input.TaxRate != nil {
		updates["tax_rate"] = *input.TaxRate
	}
	if input.Capacity != nil {
		updates["capacity"] = *input.Capacity
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.CancellationPolicy != nil {
		updates["cancellation_policy"] = *input.CancellationPolicy
	}
	if input.BookingMode != nil {
		updates["booking_mode"] = *input.BookingMode
	}
	if input.HouseRules != nil {
		updates["house_rules"] = *input.HouseRules
	}
	if input.CheckInTime != nil {
		updates["check_in_time"] = *input.CheckInTime
	}
	if input.CheckOutTime != nil {
		updates["check_out_time"] = *input.CheckOutTime
	}
	if input.Amenities != nil {
		raw, _ := json.Marshal(input.Amenities)
		updates["amenities"] = string(raw)
	}
	if input.Images != nil {
		raw, _ := json.Marshal(input.Images)
		updates["images"] = string(raw)
	}

	if len(updates) > 0 {
		if err := r.DB.Model(&property).Updates(updates).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	r.DB.Preload("Units").First(&property, property.ID)
	ctx.JSON(property)
}

// Delete removes a listing. Listings with upcoming confirmed or active stays
// cannot be deleted; cancel or complete those bookings first.
func (r *Properties) Delete(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var upcoming int64
	r.DB.Model(&models.Booking{}).
		Where("property_id = ? AND status IN ? AND check_out > ?", property.ID, conflictStatuses, time.Now()).
		Count(&upcoming)
	if upcoming > 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{"message": "Property has upcoming bookings and cannot be deleted"})
		return
	}

	r.DB.Where("property_id = ?", property.ID).Delete(&models.PropertyUnit{})
	r.DB.Where("property_id = ?", property.ID).Delete(&models.PropertyBlock{})
	if err := r.DB.Delete(&property).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if r.Cache != nil {
		r.Cache.InvalidateBookedDates(ctx, property.ID)
	}

	ctx.StatusCode(iris.StatusNoContent)
}

type CreateBlockInput struct {
	StartDate     time.Time `json:"startDate" validate:"required"`
	EndDate       time.Time `json:"endDate" validate:"required"`
	Reason        string    `json:"reason" validate:"max=512"`
	IsMaintenance bool      `json:"isMaintenance"`
}

// CreateBlock takes a date range off the calendar. Ranges already holding a
// confirmed or active stay cannot be blocked.
func (r *Properties) CreateBlock(ctx iris.Context) {
	propertyID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, propertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input CreateBlockInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if !input.StartDate.Before(input.EndDate) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "startDate must be before endDate", ctx)
		return
	}

	var conflicts int64
	r.DB.Model(&models.Booking{}).
		Where("property_id = ? AND status IN ? AND check_in < ? AND check_out > ?",
			property.ID, conflictStatuses, input.EndDate, input.StartDate).
		Count(&conflicts)
	if conflicts > 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"ok":        false,
			"conflicts": conflicts,
			"message":   "Dates already hold a booking",
		})
		return
	}

	block := models.PropertyBlock{
		PropertyID:    property.ID,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Reason:        input.Reason,
		IsMaintenance: input.IsMaintenance,
	}
	if err := r.DB.Create(&block).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if r.Cache != nil {
		r.Cache.InvalidateBookedDates(ctx, property.ID)
	}

	ctx.JSON(block)
}

// ListBlocks returns a property's calendar blocks to its host.
func (r *Properties) ListBlocks(ctx iris.Context) {
	propertyID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, propertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var blocks []models.PropertyBlock
	if err := r.DB.Where("property_id = ?", property.ID).Order("start_date ASC").Find(&blocks).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	ctx.JSON(blocks)
}

// DeleteBlock frees a blocked range.
func (r *Properties) DeleteBlock(ctx iris.Context) {
	blockID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var block models.PropertyBlock
	if err := r.DB.First(&block, blockID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Block not found", ctx)
		return
	}

	var property models.Property
	if err := r.DB.First(&property, block.PropertyID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := r.DB.Delete(&block).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if r.Cache != nil {
		r.Cache.InvalidateBookedDates(ctx, property.ID)
	}

	ctx.StatusCode(iris.StatusNoContent)
}

type CreateUnitInput struct {
	Name         string   `json:"name" validate:"required,max=128"`
	Capacity     int      `json:"capacity" validate:"required,gte=1,lte=50"`
	NightlyPrice *float64 `json:"nightlyPrice" validate:"omitempty,gt=0"`
}

// CreateUnit adds a bookable sub-unit to a listing.
func (r *Properties) CreateUnit(ctx iris.Context) {
	propertyID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, propertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input CreateUnitInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	active := true
	unit := models.PropertyUnit{
		PropertyID:   property.ID,
		Name:         input.Name,
		Capacity:     input.Capacity,
		NightlyPrice: input.NightlyPrice,
		IsActive:     &active,
	}
	if err := r.DB.Create(&unit).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(unit)
}

// DeleteUnit removes a sub-unit with no upcoming stays.
func (r *Properties) DeleteUnit(ctx iris.Context) {
	unitID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var unit models.PropertyUnit
	if err := r.DB.First(&unit, unitID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	}

	var property models.Property
	if err := r.DB.First(&property, unit.PropertyID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var upcoming int64
	r.DB.Model(&models.Booking{}).
		Where("unit_id = ? AND status IN ? AND check_out > ?", unit.ID, conflictStatuses, time.Now()).
		Count(&upcoming)
	if upcoming > 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{"message": "Unit has upcoming bookings and cannot be deleted"})
		return
	}

	if err := r.DB.Delete(&unit).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusNoContent)
}
