package utils

import (
	"github.com/kataras/iris/v12"
)

// JSONError writes a flat code/message error body. The route handlers use the
// richer CreateError problem shape; this one serves middleware rejections.
func JSONError(ctx iris.Context, status int, code, message string) {
	ctx.StopWithJSON(status, iris.Map{"error": code, "message": message})
}
