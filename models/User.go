package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	PhoneNumber         string         `json:"phoneNumber" gorm:"uniqueIndex"`
	Password            string         `json:"password"`
	SocialLogin         bool           `json:"socialLogin"`
	SocialProvider      string         `json:"socialProvider"`
	AvatarURL           string         `json:"avatarURL"`
	Bio                 string         `json:"bio"`
	Languages           datatypes.JSON `json:"languages"`
	Properties          []Property     `json:"properties" gorm:"foreignKey:HostID;references:ID"`
	SavedProperties     datatypes.JSON `json:"savedProperties"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, host, admin
}

// Custom JSON marshaling to handle JSON fields properly
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		Languages       []string `json:"languages,omitempty"`
		SavedProperties []int    `json:"savedProperties,omitempty"`
		PushTokens      []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		Languages:       []string{},
		SavedProperties: []int{},
		PushTokens:      []string{},
		Alias:           (*Alias)(u),
	}

	// Parse Languages JSON
	if u.Languages != nil {
		var languages []string
		if err := json.Unmarshal(u.Languages, &languages); err == nil {
			aux.Languages = languages
		}
	}

	// Parse SavedProperties JSON
	if u.SavedProperties != nil {
		var savedProperties []int
		if err := json.Unmarshal(u.SavedProperties, &savedProperties); err == nil {
			aux.SavedProperties = savedProperties
		}
	}

	// Parse PushTokens JSON
	if u.PushTokens != nil {
		var pushTokens []string
		if err := json.Unmarshal(u.PushTokens, &pushTokens); err == nil {
			aux.PushTokens = pushTokens
		}
	}

	// Properties is excluded to prevent circular reference

	return json.Marshal(aux)
}
