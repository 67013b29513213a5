package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hoy-server/config"
	"hoy-server/models"
	"hoy-server/storage"
)

// Seeds a demo host and a handful of Somaliland listings so a fresh
// environment has something to browse and book against.
func main() {
	godotenv.Load()
	cfg := config.Load()

	db, err := storage.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	host := ensureUser(db, models.User{
		FirstName:   "Amina",
		LastName:    "Warsame",
		Email:       "amina@hoy.app",
		PhoneNumber: "634123456",
		Role:        "host",
	})
	guest := ensureUser(db, models.User{
		FirstName:   "Khadar",
		LastName:    "Ismail",
		Email:       "khadar@hoy.app",
		PhoneNumber: "651234567",
		Role:        "user",
	})

	created := 0
	for _, listing := range demoListings(host.ID) {
		if ensureListing(db, listing) {
			created++
		}
	}

	fmt.Printf("Seed complete: host %s, guest %s, %d new listings\n", host.Email, guest.Email, created)
}

func ensureUser(db *gorm.DB, user models.User) models.User {
	var existing models.User
	res := db.Where("email = ?", user.Email).Limit(1).Find(&existing)
	if res.Error != nil {
		log.Fatalf("seed: look up %s: %v", user.Email, res.Error)
	}
	if res.RowsAffected > 0 {
		return existing
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("hoy-demo-password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}
	allows := true
	user.Password = string(hashed)
	user.AllowsNotifications = &allows

	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("seed: create %s: %v", user.Email, err)
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.Role)
	return user
}

func ensureListing(db *gorm.DB, listing models.Property) bool {
	var existing models.Property
	res := db.Where("slug = ?", listing.Slug).Limit(1).Find(&existing)
	if res.Error != nil {
		log.Fatalf("seed: look up %s: %v", listing.Slug, res.Error)
	}
	if res.RowsAffected > 0 {
		return false
	}

	if err := db.Create(&listing).Error; err != nil {
		log.Fatalf("seed: create %s: %v", listing.Slug, err)
	}
	fmt.Printf("Created listing %s\n", listing.Title)
	return true
}

func demoListings(hostID uint) []models.Property {
	active := true
	roomPrice := 18.0

	return []models.Property{
		{
			HostID:             hostID,
			Title:              "Maansoor Villa",
			Slug:               "maansoor-villa-demo",
			Description:        "Quiet walled villa near the Maansoor hotel with a shaded courtyard and reliable generator power.",
			PropertyType:       "entire_place",
			AddressLine1:       "Maansoor Area",
			City:               "Hargeisa",
			Region:             "Maroodi Jeex",
			Country:            "Somaliland",
			Lat:                9.5624,
			Lng:                44.0770,
			Capacity:           6,
			Bedrooms:           3,
			Beds:               4,
			Bathrooms:          2,
			NightlyPrice:       40,
			CleaningFee:        15,
			ServiceFee:         10,
			TaxRate:            0.05,
			Currency:           "USD",
			Amenities:          jsonList("wifi", "generator", "parking", "kitchen"),
			Images:             jsonList("https://media.hoy.app/seed/maansoor-villa-1.jpg"),
			CancellationPolicy: "flexible",
			BookingMode:        "instant",
			IsActive:           &active,
			Rating:             4.8,
		},
		{
			HostID:             hostID,
			Title:              "Berbera Beach House",
			Slug:               "berbera-beach-house-demo",
			Description:        "Two-storey house a short walk from the Batalaale beach, with sea-facing balconies.",
			PropertyType:       "entire_place",
			AddressLine1:       "Batalaale Road",
			City:               "Berbera",
			Region:             "Sahil",
			Country:            "Somaliland",
			Lat:                10.4396,
			Lng:                45.0143,
			Capacity:           8,
			Bedrooms:           4,
			Beds:               6,
			Bathrooms:          3,
			NightlyPrice:       55,
			CleaningFee:        20,
			ServiceFee:         12,
			TaxRate:            0.05,
			Currency:           "USD",
			Amenities:          jsonList("wifi", "air_conditioning", "beach_access"),
			Images:             jsonList("https://media.hoy.app/seed/berbera-beach-1.jpg"),
			CancellationPolicy: "moderate",
			BookingMode:        "request",
			IsActive:           &active,
			Rating:             4.6,
		},
		{
			HostID:             hostID,
			Title:              "Hargeisa Garden Guesthouse",
			Slug:               "hargeisa-garden-guesthouse-demo",
			Description:        "Guesthouse off Jigjiga Yar with three private rooms booked individually.",
			PropertyType:       "private_room",
			AddressLine1:       "Jigjiga Yar",
			City:               "Hargeisa",
			Region:             "Maroodi Jeex",
			Country:            "Somaliland",
			Lat:                9.5582,
			Lng:                44.0631,
			Capacity:           2,
			Bedrooms:           3,
			Beds:               3,
			Bathrooms:          2,
			NightlyPrice:       22,
			CleaningFee:        5,
			ServiceFee:         4,
			TaxRate:            0.05,
			Currency:           "USD",
			Amenities:          jsonList("wifi", "breakfast", "courtyard"),
			Images:             jsonList("https://media.hoy.app/seed/garden-guesthouse-1.jpg"),
			CancellationPolicy: "moderate",
			BookingMode:        "request",
			IsActive:           &active,
			Rating:             4.5,
			Units: []models.PropertyUnit{
				{Name: "Room 1", Capacity: 2, IsActive: &active},
				{Name: "Room 2", Capacity: 2, IsActive: &active},
				{Name: "Room 3", Capacity: 3, NightlyPrice: &roomPrice, IsActive: &active},
			},
		},
	}
}

func jsonList(items ...string) string {
	raw, _ := json.Marshal(items)
	return string(raw)
}
