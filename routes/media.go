package routes

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"hoy-server/storage"
	"hoy-server/utils"
)

// Media hands out presigned S3 URLs for listing photos. Image bytes never
// pass through the API server.
type Media struct {
	Uploads *storage.Uploads
}

func NewMedia(uploads *storage.Uploads) *Media {
	return &Media{Uploads: uploads}
}

type PresignUploadInput struct {
	FileName    string `json:"fileName" validate:"required,max=256"`
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp"`
}

// PresignUpload returns a URL the client PUTs the photo to, plus the key the
// listing should reference. Keys are namespaced per user so clients cannot
// overwrite each other's photos.
func (r *Media) PresignUpload(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	if r.Uploads == nil {
		utils.CreateError(iris.StatusServiceUnavailable, "Unavailable", "Uploads are not configured", ctx)
		return
	}

	var input PresignUploadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	ext := path.Ext(input.FileName)
	key := fmt.Sprintf("listings/%d/%s%s", claims.ID, uuid.NewString(), ext)

	url, err := r.Uploads.PresignPut(ctx, key, input.ContentType)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"success":   true,
		"uploadURL": url,
		"key":       key,
	})
}

// Download returns a time-limited URL for a stored object.
func (r *Media) Download(ctx iris.Context) {
	if r.Uploads == nil {
		utils.CreateError(iris.StatusServiceUnavailable, "Unavailable", "Uploads are not configured", ctx)
		return
	}

	key := ctx.URLParam("key")
	if key == "" {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "key is required", ctx)
		return
	}

	url, err := r.Uploads.PresignGet(ctx, key)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "url": url})
}
