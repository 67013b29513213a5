package routes

import (
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"hoy-server/models"
	"hoy-server/utils"
)

// Notifications serves the in-app notifications screen.
type Notifications struct {
	DB *gorm.DB
}

func NewNotifications(db *gorm.DB) *Notifications {
	return &Notifications{DB: db}
}

// List returns the caller's most recent notifications and the unread count
// the tab badge shows.
func (r *Notifications) List(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	limit := ctx.URLParamIntDefault("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.Notification
	res := r.DB.Where("user_id = ?", claims.ID).
		Order("created_at DESC").Limit(limit).Find(&notifications)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	var unread int64
	r.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", claims.ID).Count(&unread)

	ctx.JSON(iris.Map{
		"success":       true,
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

type MarkNotificationsReadInput struct {
	IDs []uint `json:"ids"`
	All bool   `json:"all"`
}

// MarkRead marks the given notifications (or all of them) as read. Already
// read rows keep their original timestamp.
func (r *Notifications) MarkRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input MarkNotificationsReadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if !input.All && len(input.IDs) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Provide ids or set all", ctx)
		return
	}

	q := r.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", claims.ID)
	if !input.All {
		q = q.Where("id IN ?", input.IDs)
	}

	res := q.Update("read_at", time.Now())
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "updated": res.RowsAffected})
}
