package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hoy-server/models"
	"hoy-server/services"
	"hoy-server/utils"
)

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// Users serves registration, login and profile endpoints.
type Users struct {
	DB       *gorm.DB
	Tokens   *utils.TokenService
	Notifier *services.Notifier

	// GoogleCerts is the JWKS endpoint Google ID tokens are verified
	// against. Overridable in tests.
	GoogleCerts string
}

func NewUsers(db *gorm.DB, tokens *utils.TokenService, notifier *services.Notifier) *Users {
	return &Users{DB: db, Tokens: tokens, Notifier: notifier, GoogleCerts: googleCertsURL}
}

type RegisterUserInput struct {
	FirstName   string `json:"firstName" validate:"required,max=256"`
	LastName    string `json:"lastName" validate:"required,max=256"`
	Email       string `json:"email" validate:"required,max=256,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
	Password    string `json:"password" validate:"required,min=8,max=256"`
}

func (r *Users) Register(ctx iris.Context) {
	var input RegisterUserInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !utils.ValidatePhoneNumber(input.PhoneNumber) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid phone number. Somaliland mobile numbers are 9 digits starting with 6.", ctx)
		return
	}
	phone := utils.NormalizePhoneNumber(input.PhoneNumber)

	var existing models.User
	userExists, err := r.userByEmail(&existing, input.Email)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userExists {
		utils.CreateError(iris.StatusConflict, "Conflict", "Email already registered.", ctx)
		return
	}

	phoneExists, err := r.userByPhone(&existing, phone)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if phoneExists {
		utils.CreateError(iris.StatusConflict, "Conflict", "Phone number already registered.", ctx)
		return
	}

	hashedPassword, err := hashAndSaltPassword(input.Password)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	allows := true
	newUser := models.User{
		FirstName:           input.FirstName,
		LastName:            input.LastName,
		Email:               strings.ToLower(input.Email),
		PhoneNumber:         phone,
		Password:            hashedPassword,
		SocialLogin:         false,
		Role:                "user",
		AllowsNotifications: &allows,
	}

	if err := r.DB.Create(&newUser).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if r.Notifier != nil {
		go r.Notifier.Welcome(newUser.ID, newUser.FirstName)
	}

	r.returnUser(newUser, ctx)
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *Users) Login(ctx iris.Context) {
	var input LoginUserInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	userExists, err := r.userByEmail(&user, input.Email)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid email or password.", ctx)
		return
	}

	if user.SocialLogin {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Social Login Account", ctx)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid email or password.", ctx)
		return
	}

	r.returnUser(user, ctx)
}

type GoogleSignInInput struct {
	IDToken string `json:"idToken" validate:"required"`
}

// GoogleSignIn verifies a Google ID token against Google's published JWKS
// and logs the user in, creating the account on first sight.
func (r *Users) GoogleSignIn(ctx iris.Context) {
	var input GoogleSignInInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	res, err := http.Get(r.GoogleCerts)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	jwks, err := keyfunc.NewJSON(body)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	token, err := jwt.Parse(input.IDToken, jwks.Keyfunc)
	if err != nil || !token.Valid {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid Google token.", ctx)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid Google token.", ctx)
		return
	}
	email, _ := claims["email"].(string)
	if email == "" {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Google token is missing an email.", ctx)
		return
	}

	var user models.User
	userExists, err := r.userByEmail(&user, email)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if userExists {
		if !user.SocialLogin {
			utils.CreateError(iris.StatusConflict, "Conflict", "This email is registered with a password. Log in with email and password.", ctx)
			return
		}
		r.returnUser(user, ctx)
		return
	}

	firstName, _ := claims["given_name"].(string)
	lastName, _ := claims["family_name"].(string)
	avatar, _ := claims["picture"].(string)

	allows := true
	user = models.User{
		FirstName:           firstName,
		LastName:            lastName,
		Email:               strings.ToLower(email),
		AvatarURL:           avatar,
		SocialLogin:         true,
		SocialProvider:      "google",
		Role:                "user",
		AllowsNotifications: &allows,
	}
	if err := r.DB.Create(&user).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if r.Notifier != nil {
		go r.Notifier.Welcome(user.ID, user.FirstName)
	}

	r.returnUser(user, ctx)
}

// Refresh rotates a refresh token into a fresh pair. Each refresh token is
// accepted exactly once.
func (r *Users) Refresh(ctx iris.Context) {
	token := jsonWT.GetVerifiedToken(ctx)

	ok, err := r.Tokens.ConsumeRefreshToken(ctx, string(token.Token))
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !ok {
		utils.CreateNotFound(ctx)
		return
	}

	userID, parseErr := strconv.ParseUint(token.StandardClaims.Subject, 10, 32)
	if parseErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	tokenPair, tokenPairErr := r.Tokens.CreateTokenPair(ctx, uint(userID))
	if tokenPairErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}

// GetUser returns a user's own record.
func (r *Users) GetUser(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := r.userByID(id, ctx)
	if user == nil {
		return
	}

	ctx.JSON(user)
}

type UpdateProfileInput struct {
	FirstName *string  `json:"firstName" validate:"omitempty,max=256"`
	LastName  *string  `json:"lastName" validate:"omitempty,max=256"`
	Bio       *string  `json:"bio" validate:"omitempty,max=2000"`
	AvatarURL *string  `json:"avatarURL" validate:"omitempty,max=1024"`
	Languages []string `json:"languages"`
}

func (r *Users) UpdateProfile(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := r.userByID(id, ctx)
	if user == nil {
		return
	}

	var input UpdateProfileInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Bio != nil {
		updates["bio"] = *input.Bio
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = *input.AvatarURL
	}
	if input.Languages != nil {
		raw, _ := json.Marshal(input.Languages)
		updates["languages"] = datatypes.JSON(raw)
	}

	if len(updates) > 0 {
		if err := r.DB.Model(user).Updates(updates).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(user)
}

type AlterPushTokenInput struct {
	Op    string `json:"op" validate:"required,oneof=add remove"`
	Token string `json:"token" validate:"required,max=512"`
}

// AlterPushToken registers or removes one Expo push token for the user's
// current device.
func (r *Users) AlterPushToken(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := r.userByID(id, ctx)
	if user == nil {
		return
	}

	var input AlterPushTokenInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var tokens []string
	if user.PushTokens != nil {
		json.Unmarshal(user.PushTokens, &tokens)
	}

	switch input.Op {
	case "add":
		if !slices.Contains(tokens, input.Token) {
			tokens = append(tokens, input.Token)
		}
	case "remove":
		kept := tokens[:0]
		for _, t := range tokens {
			if t != input.Token {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	raw, _ := json.Marshal(tokens)
	if err := r.DB.Model(user).Update("push_tokens", datatypes.JSON(raw)).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(user)
}

type AllowsNotificationsInput struct {
	AllowsNotifications *bool `json:"allowsNotifications" validate:"required"`
}

// AllowsNotifications flips the push opt-in. Opting out also drops every
// registered device token, so a stale token can never ping the user again.
func (r *Users) AllowsNotifications(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := r.userByID(id, ctx)
	if user == nil {
		return
	}

	var input AllowsNotificationsInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{"allows_notifications": *input.AllowsNotifications}
	if !*input.AllowsNotifications {
		updates["push_tokens"] = nil
	}

	if err := r.DB.Model(user).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusNoContent)
}

func (r *Users) returnUser(user models.User, ctx iris.Context) {
	tokenPair, err := r.Tokens.CreateTokenPair(ctx, user.ID)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":                  user.ID,
		"firstName":           user.FirstName,
		"lastName":            user.LastName,
		"email":               user.Email,
		"phoneNumber":         user.PhoneNumber,
		"role":                user.Role,
		"avatarURL":           user.AvatarURL,
		"allowsNotifications": user.AllowsNotifications,
		"accessToken":         string(tokenPair.AccessToken),
		"refreshToken":        string(tokenPair.RefreshToken),
	})
}

func (r *Users) userByEmail(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := r.DB.Where("email = ?", strings.ToLower(email)).Limit(1).Find(user)

	if userExistsQuery.Error != nil {
		return false, userExistsQuery.Error
	}

	return userExistsQuery.RowsAffected > 0, nil
}

func (r *Users) userByPhone(user *models.User, phoneNumber string) (exists bool, err error) {
	userExistsQuery := r.DB.Where("phone_number = ?", utils.NormalizePhoneNumber(phoneNumber)).Limit(1).Find(user)

	if userExistsQuery.Error != nil {
		return false, userExistsQuery.Error
	}

	return userExistsQuery.RowsAffected > 0, nil
}

func (r *Users) userByID(id string, ctx iris.Context) *models.User {
	var user models.User
	userExists := r.DB.Where("id = ?", id).Find(&user)

	if userExists.Error != nil {
		utils.CreateInternalServerError(ctx)
		return nil
	}

	if userExists.RowsAffected == 0 {
		utils.CreateError(iris.StatusNotFound, "Not Found", "User not found", ctx)
		return nil
	}

	return &user
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
