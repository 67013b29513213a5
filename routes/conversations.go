package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"hoy-server/models"
	"hoy-server/services"
	"hoy-server/utils"
)

// Conversations serves guest/host messaging. One thread exists per
// (property, guest) pair; starting it twice returns the existing thread.
type Conversations struct {
	DB       *gorm.DB
	Notifier *services.Notifier
}

func NewConversations(db *gorm.DB, notifier *services.Notifier) *Conversations {
	return &Conversations{DB: db, Notifier: notifier}
}

type StartConversationInput struct {
	PropertyID uint   `json:"propertyID" validate:"required"`
	Text       string `json:"text" validate:"max=5000"`
}

// Start opens (or returns) the caller's thread about a listing, optionally
// sending a first message.
func (r *Conversations) Start(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input StartConversationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var property models.Property
	if err := r.DB.First(&property, input.PropertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID == claims.ID {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "You cannot message yourself about your own listing", ctx)
		return
	}

	var conversation models.Conversation
	res := r.DB.Where("property_id = ? AND guest_id = ?", property.ID, claims.ID).
		Limit(1).Find(&conversation)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		conversation = models.Conversation{
			PropertyID:    property.ID,
			GuestID:       claims.ID,
			HostID:        property.HostID,
			LastMessageAt: time.Now(),
		}
		if err := r.DB.Create(&conversation).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	if input.Text != "" {
		r.deliver(ctx, &conversation, claims.ID, models.Message{
			ConversationID: conversation.ID,
			SenderID:       claims.ID,
			ReceiverID:     property.HostID,
			Text:           input.Text,
			Type:           "text",
			State:          "sent",
		})
	}

	r.DB.Preload("Property").Preload("Guest").Preload("Host").First(&conversation, conversation.ID)
	ctx.JSON(conversation)
}

// ListForUser returns every thread the caller participates in, most recent
// activity first.
func (r *Conversations) ListForUser(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var conversations []models.Conversation
	res := r.DB.
		Where("guest_id = ? OR host_id = ?", claims.ID, claims.ID).
		Preload("Property").
		Preload("Guest").
		Preload("Host").
		Order("last_message_at DESC").
		Find(&conversations)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(conversations)
}

// GetByID returns one thread to its participants.
func (r *Conversations) GetByID(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var conversation models.Conversation
	if err := r.DB.Preload("Property").Preload("Guest").Preload("Host").First(&conversation, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Conversation not found", ctx)
		return
	}

	if conversation.GuestID != claims.ID && conversation.HostID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	ctx.JSON(conversation)
}

// Messages pages a thread's messages backwards from the cursor. The response
// is in chronological order; nextCursor feeds the next (older) page.
func (r *Conversations) Messages(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var conversation models.Conversation
	if err := r.DB.First(&conversation, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Conversation not found", ctx)
		return
	}
	if conversation.GuestID != claims.ID && conversation.HostID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	limit := ctx.URLParamIntDefault("limit", 30)
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor := ctx.URLParamIntDefault("cursor", 0)

	q := r.DB.Where("conversation_id = ?", conversation.ID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}

	var messages []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	var nextCursor uint
	if len(messages) > 0 {
		nextCursor = messages[0].ID
	}

	ctx.JSON(iris.Map{
		"success":    true,
		"messages":   messages,
		"nextCursor": nextCursor,
	})
}

type SendMessageInput struct {
	Text    string `json:"text" validate:"required_without=RefID,max=5000"`
	Type    string `json:"type" validate:"omitempty,oneof=text booking_card property_card"`
	RefType string `json:"refType" validate:"omitempty,oneof=booking property"`
	RefID   *uint  `json:"refID"`
}

// Send posts a message into a thread. Card messages referencing a booking or
// the listing get their preview fields filled server side.
func (r *Conversations) Send(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var conversation models.Conversation
	if err := r.DB.First(&conversation, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Conversation not found", ctx)
		return
	}
	if conversation.GuestID != claims.ID && conversation.HostID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	var input SendMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	receiverID := conversation.HostID
	if claims.ID == conversation.HostID {
		receiverID = conversation.GuestID
	}

	msgType := input.Type
	if msgType == "" {
		msgType = "text"
	}

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       claims.ID,
		ReceiverID:     receiverID,
		Text:           input.Text,
		Type:           msgType,
		RefType:        input.RefType,
		RefID:          input.RefID,
		State:          "sent",
	}

	if input.RefID != nil {
		if !r.decorateRef(ctx, &conversation, &message) {
			return
		}
	}

	r.deliver(ctx, &conversation, claims.ID, message)
}

type SetMessageStateInput struct {
	State string `json:"state" validate:"required,oneof=delivered seen"`
}

// SetState advances a message's delivery state. Only the receiver may move
// it, and seen never regresses to delivered.
func (r *Conversations) SetState(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input SetMessageStateInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var message models.Message
	if err := r.DB.First(&message, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Message not found", ctx)
		return
	}
	if message.ReceiverID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	if message.State == "seen" && input.State == "delivered" {
		ctx.JSON(message)
		return
	}

	now := time.Now()
	updates := map[string]interface{}{"state": input.State}
	if message.DeliveredAt == nil {
		updates["delivered_at"] = now
	}
	if input.State == "seen" && message.SeenAt == nil {
		updates["seen_at"] = now
	}

	if err := r.DB.Model(&message).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(message)
}

// deliver persists the message, bumps the thread and pings the receiver.
func (r *Conversations) deliver(ctx iris.Context, conversation *models.Conversation, senderID uint, message models.Message) {
	if err := r.DB.Create(&message).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	r.DB.Model(conversation).Update("last_message_at", time.Now())

	if r.Notifier != nil {
		var sender models.User
		senderName := "Someone"
		if err := r.DB.First(&sender, senderID).Error; err == nil {
			senderName = fmt.Sprintf("%s %s", sender.FirstName, sender.LastName)
		}
		preview := message.Text
		if preview == "" {
			preview = message.PreviewTitle
		}
		if len(preview) > 80 {
			preview = preview[:77] + "..."
		}
		go r.Notifier.MessageReceived(message.ReceiverID, senderID, senderName, preview)
	}

	ctx.JSON(message)
}

// decorateRef fills a card message's preview from the row it references. The
// referenced booking must belong to this thread's pair.
func (r *Conversations) decorateRef(ctx iris.Context, conversation *models.Conversation, message *models.Message) bool {
	switch message.RefType {
	case "booking":
		var b models.Booking
		if err := r.DB.Preload("Property").First(&b, *message.RefID).Error; err != nil {
			utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
			return false
		}
		if b.GuestID != conversation.GuestID || b.PropertyID != conversation.PropertyID {
			ctx.StopWithStatus(http.StatusForbidden)
			return false
		}
		message.Type = "booking_card"
		if b.Property != nil {
			message.PreviewTitle = b.Property.Title
			message.PreviewImageURL = firstImage(b.Property.Images)
		}
		message.PreviewSubtitle = fmt.Sprintf("%s - %s · %s",
			b.CheckIn.Format("Jan 2"), b.CheckOut.Format("Jan 2"), b.Guests().Summary())

	case "property":
		var property models.Property
		if err := r.DB.First(&property, *message.RefID).Error; err != nil {
			utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
			return false
		}
		message.Type = "property_card"
		message.PreviewTitle = property.Title
		message.PreviewSubtitle = property.City
		message.PreviewImageURL = firstImage(property.Images)

	default:
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "refType is required when refID is set", ctx)
		return false
	}
	return true
}

// firstImage returns the first URL of a JSON-encoded image array.
func firstImage(images string) string {
	if images == "" {
		return ""
	}
	var arr []string
	if err := json.Unmarshal([]byte(images), &arr); err != nil || len(arr) == 0 {
		return ""
	}
	return arr[0]
}
