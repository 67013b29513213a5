package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"hoy-server/booking"
	"hoy-server/config"
	"hoy-server/routes"
	"hoy-server/services"
	"hoy-server/storage"
	"hoy-server/utils"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	cfg := config.Load()

	db, err := storage.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	rdb := storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	cache := storage.NewCache(rdb)

	uploads, err := storage.NewUploads(context.Background(), cfg.S3Bucket)
	if err != nil {
		log.Printf("media uploads disabled: %v", err)
	}

	rootCtx, stopEvents := context.WithCancel(context.Background())
	events := services.NewEvents(cfg.KafkaBrokers, "hoy.bookings", 256)
	events.Start(rootCtx)

	calc := booking.NewCalculator(nil)
	tokens := utils.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, db, rdb)
	notifier := services.NewNotifier(db)
	mailer := services.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	zaad := services.NewZaadClient(cfg.ZaadMerchantID, cfg.ZaadAPIKey, cfg.ZaadBaseURL, cfg.ZaadSecret)
	stripeProvider := services.NewStripeProvider(cfg.StripeKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
	sweeper := services.NewSweeper(db, cache, events, notifier)

	validate := validator.New()

	users := routes.NewUsers(db, tokens, notifier)
	users.GoogleCerts = cfg.GoogleJWKSURL
	properties := routes.NewProperties(db, validate, cache)
	bookings := routes.NewBookings(db, calc, cache, events, notifier, mailer, sweeper)
	conversations := routes.NewConversations(db, notifier)
	notifications := routes.NewNotifications(db)
	payments := routes.NewPayments(db, zaad, stripeProvider, cfg.StripeWebhookSecret, cache, events, notifier, mailer)
	media := routes.NewMedia(uploads)

	app := iris.New()
	app.Validator = validate

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, Idempotency-Key")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	// Minimal middleware - compression only
	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(cfg.AccessTokenSecret))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(cfg.RefreshTokenSecret))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", users.Register)
		user.Post("/login", users.Login)
		user.Post("/google", users.GoogleSignIn)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, users.GetUser)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, users.UpdateProfile)
		user.Patch("/{id}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, users.AlterPushToken)
		user.Patch("/{id}/settings/notifications", accessTokenVerifierMiddleware, utils.UserIDMiddleware, users.AllowsNotifications)
	}

	property := app.Party("/api/property")
	{
		property.Post("/", accessTokenVerifierMiddleware, properties.Create)
		property.Post("/search", properties.Search)
		property.Get("/host", accessTokenVerifierMiddleware, properties.ListByHost)
		property.Get("/{id}", properties.Get)
		property.Patch("/update/{id}", accessTokenVerifierMiddleware, properties.Update)
		property.Delete("/{id}", accessTokenVerifierMiddleware, properties.Delete)
		property.Post("/{id}/blocks", accessTokenVerifierMiddleware, properties.CreateBlock)
		property.Get("/{id}/blocks", accessTokenVerifierMiddleware, properties.ListBlocks)
		property.Delete("/blocks/{id}", accessTokenVerifierMiddleware, properties.DeleteBlock)
		property.Post("/{id}/units", accessTokenVerifierMiddleware, properties.CreateUnit)
		property.Delete("/units/{id}", accessTokenVerifierMiddleware, properties.DeleteUnit)
	}

	booking := app.Party("/api/booking")
	{
		booking.Post("/property/{id}", accessTokenVerifierMiddleware, bookings.Create)
		booking.Post("/property/{id}/validate", bookings.Validate)
		booking.Get("/property/{id}/booked-dates", bookings.BookedDates)
		booking.Get("/property/{id}", accessTokenVerifierMiddleware, bookings.ListByProperty)
		booking.Post("/quote", bookings.Quote)
		booking.Get("/user/{id}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, bookings.ListByUser)
		booking.Get("/host", accessTokenVerifierMiddleware, bookings.ListByHost)
		booking.Get("/{id}", accessTokenVerifierMiddleware, bookings.GetByID)
		booking.Patch("/{id}/status", accessTokenVerifierMiddleware, bookings.UpdateStatus)
		booking.Delete("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, bookings.Cancel)
		booking.Post("/expire-pending", accessTokenVerifierMiddleware, utils.RoleMiddleware("admin"), bookings.ExpirePending)
	}

	conversation := app.Party("/api/conversation")
	{
		conversation.Post("/", accessTokenVerifierMiddleware, conversations.Start)
		conversation.Get("/", accessTokenVerifierMiddleware, conversations.ListForUser)
		conversation.Get("/{id}", accessTokenVerifierMiddleware, conversations.GetByID)
		conversation.Get("/{id}/messages", accessTokenVerifierMiddleware, conversations.Messages)
		conversation.Post("/{id}/messages", accessTokenVerifierMiddleware, conversations.Send)
	}

	messages := app.Party("/api/messages")
	{
		messages.Patch("/{id}/state", accessTokenVerifierMiddleware, conversations.SetState)
	}

	notification := app.Party("/api/notifications")
	{
		notification.Get("/", accessTokenVerifierMiddleware, notifications.List)
		notification.Post("/read", accessTokenVerifierMiddleware, notifications.MarkRead)
	}

	payment := app.Party("/api/payment")
	{
		payment.Post("/booking/{id}/initiate", accessTokenVerifierMiddleware, payments.Initiate)
		payment.Post("/zaad/callback", payments.ZaadCallback)
		payment.Post("/stripe/webhook", payments.StripeWebhook)
	}

	app.Post("/api/media/presign", accessTokenVerifierMiddleware, media.PresignUpload)
	app.Get("/api/media/download", accessTokenVerifierMiddleware, media.Download)

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, users.Refresh)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("❌ scheduler: %v", err)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(sweeper.Run, rootCtx),
	); err != nil {
		log.Fatalf("❌ scheduler: %v", err)
	}
	scheduler.Start()

	iris.RegisterOnInterrupt(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := scheduler.Shutdown(); err != nil {
			log.Printf("scheduler shutdown: %v", err)
		}
		app.Shutdown(shutdownCtx)

		// Flush queued booking events before the process exits.
		stopEvents()
		events.WaitClosed()
	})

	fmt.Printf("🚀 Server starting on %s\n", cfg.HTTPAddr)

	if err := app.Listen(cfg.HTTPAddr, iris.WithoutInterruptHandler); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
