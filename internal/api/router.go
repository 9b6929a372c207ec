package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/api/handlers"
	"kliklens/studioops/internal/api/middleware"
	"kliklens/studioops/internal/captcha"
	"kliklens/studioops/internal/config"
	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, settingsSvc services.ISettingsService) *gin.Engine {
	// Initialize services needed by API handlers HERE. Construction order
	// follows the dependency chain: funding and ledger first, then the
	// project aggregate, then everything layered on top of it.
	fundingService := services.NewFundingService(db)
	ledgerService := services.NewLedgerService(db)
	teamPayService := services.NewTeamPaymentService(db)
	projectService := services.NewProjectService(db, fundingService, ledgerService, teamPayService, settingsSvc)
	costService := services.NewCostService(db, projectService)
	settlementService := services.NewSettlementService(db, fundingService, ledgerService)
	recalcService := services.NewRecalcService(db, fundingService, ledgerService, projectService)
	workflowService := services.NewWorkflowService(db, settingsSvc)

	leadService := services.NewLeadService(db)
	clientService := services.NewClientService(db)
	memberService := services.NewMemberService(db)
	packageService := services.NewPackageService(db)
	promoService := services.NewPromoService(db)
	conversionService := services.NewConversionService(leadService, clientService, packageService, promoService, projectService, costService)
	bookingService := services.NewBookingService(db, clientService, packageService, projectService, costService)
	templateService := services.NewTemplateService(db)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize evidence storage for API: %v", err)
	}

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, settingsSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	fundingHandler := handlers.NewFundingHandler(fundingService, ledgerService)
	projectHandler := handlers.NewProjectHandler(
		cfg, projectService, costService, settlementService, recalcService,
		teamPayService, ledgerService, clientService, evidenceStorage, taskClient)
	workflowHandler := handlers.NewWorkflowHandler(workflowService, projectService, clientService, taskClient)
	leadHandler := handlers.NewLeadHandler(leadService, conversionService)
	bookingHandler := handlers.NewBookingHandler(bookingService, taskClient)
	catalogHandler := handlers.NewCatalogHandler(packageService, memberService, promoService, clientService)
	settingsHandler := handlers.NewSettingsHandler(settingsSvc, templateService)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.POST("/booking", bookingHandler.SubmitBooking)
		v1.GET("/settings", settingsHandler.GetPublicSettings)
		v1.GET("/promo/validate/:code", catalogHandler.ValidatePromo)
		v1.POST("/project/:id/confirm", workflowHandler.RecordClientConfirmation)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Staff routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			// Funding sources
			authRequired.POST("/funding", fundingHandler.CreateFundingSource)
			authRequired.GET("/funding", fundingHandler.ListFundingSources)
			authRequired.GET("/funding/:id", fundingHandler.GetFundingSource)
			authRequired.GET("/funding/:id/transactions", fundingHandler.GetFundingTransactions)
			authRequired.GET("/funding/:id/reconciliation", fundingHandler.GetFundingReconciliation)

			// Projects and costs
			authRequired.POST("/project", projectHandler.CreateProject)
			authRequired.GET("/project", projectHandler.ListProjects)
			authRequired.GET("/project/:id", projectHandler.GetProject)
			authRequired.DELETE("/project/:id", projectHandler.DeleteProject)
			authRequired.GET("/project/:id/transactions", projectHandler.GetProjectTransactions)
			authRequired.POST("/project/:id/cost", projectHandler.AddCostItem)
			authRequired.PUT("/project/:id/cost/:item_id", projectHandler.EditCostItem)
			authRequired.DELETE("/project/:id/cost/:item_id", projectHandler.RemoveCostItem)
			authRequired.POST("/project/:id/cost/:item_id/settle", projectHandler.SettleCostItem)
			authRequired.POST("/project/:id/cost/:item_id/correct", projectHandler.CorrectSettledItem)
			authRequired.POST("/project/:id/settle-batch", projectHandler.SettleCostBatch)
			authRequired.POST("/project/:id/settled-cost", projectHandler.AddSettledCost)
			authRequired.POST("/project/:id/sync-totals", projectHandler.SyncProjectTotals)
			authRequired.PUT("/project/:id/team", projectHandler.UpdateProjectTeam)
			authRequired.GET("/project/:id/team-payments", projectHandler.GetTeamPayments)
			authRequired.POST("/project/:id/payment", projectHandler.RecordClientPayment)
			authRequired.POST("/project/:id/evidence-url", projectHandler.GetEvidenceUploadURL)
			authRequired.POST("/team-payment/:id/settle", projectHandler.SettleTeamPayment)

			// Workflow
			authRequired.PUT("/project/:id/status", workflowHandler.SetStatus)
			authRequired.PUT("/project/:id/sub-status", workflowHandler.ToggleSubStatus)
			authRequired.POST("/project/:id/request-confirmation", workflowHandler.RequestConfirmation)
			authRequired.GET("/workflow/follow-ups", workflowHandler.ListPendingFollowUps)

			// Leads and conversion
			authRequired.POST("/lead", leadHandler.CreateLead)
			authRequired.GET("/lead", leadHandler.ListLeads)
			authRequired.GET("/lead/:id", leadHandler.GetLead)
			authRequired.PUT("/lead/:id/status", leadHandler.TransitionLead)
			authRequired.PUT("/lead/:id/notes", leadHandler.UpdateLeadNotes)
			authRequired.DELETE("/lead/:id", leadHandler.DeleteLead)
			authRequired.POST("/lead/:id/convert", leadHandler.ConvertLead)

			// Booking intake queue
			authRequired.GET("/booking/pending", bookingHandler.ListPendingBookings)
			authRequired.POST("/booking/:id/confirm", bookingHandler.ConfirmBooking)
			authRequired.POST("/booking/:id/reject", bookingHandler.RejectBooking)

			// Catalogs
			authRequired.POST("/package", catalogHandler.CreatePackage)
			authRequired.GET("/package", catalogHandler.ListPackages)
			authRequired.GET("/package/:id", catalogHandler.GetPackage)
			authRequired.PUT("/package/:id", catalogHandler.UpdatePackage)
			authRequired.DELETE("/package/:id", catalogHandler.DeletePackage)
			authRequired.POST("/member", catalogHandler.CreateMember)
			authRequired.GET("/member", catalogHandler.ListMembers)
			authRequired.GET("/member/:id", catalogHandler.GetMember)
			authRequired.PUT("/member/:id", catalogHandler.UpdateMember)
			authRequired.DELETE("/member/:id", catalogHandler.DeleteMember)
			authRequired.GET("/promo", catalogHandler.ListPromos)
			authRequired.POST("/client", catalogHandler.CreateClient)
			authRequired.GET("/client", catalogHandler.ListClients)
			authRequired.GET("/client/:id", catalogHandler.GetClient)
			authRequired.PUT("/client/:id", catalogHandler.UpdateClient)
			authRequired.DELETE("/client/:id", catalogHandler.DeleteClient)
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.PUT("/settings/:key", settingsHandler.SetSetting)
			adminRequired.GET("/workflow-config", settingsHandler.GetWorkflowConfig)
			adminRequired.PUT("/workflow-config", settingsHandler.SetWorkflowConfig)
			adminRequired.GET("/template/:template_id/:locale", settingsHandler.GetTemplate)
			adminRequired.PUT("/template", settingsHandler.SaveTemplate)
			adminRequired.DELETE("/template/:template_id/:locale", settingsHandler.DeleteTemplate)
			adminRequired.POST("/promo", catalogHandler.CreatePromo)
			adminRequired.POST("/promo/:id/deactivate", catalogHandler.DeactivatePromo)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine. It runs
// on a separate port and exists for ops and end-to-end test tooling: remote
// shutdown and fetching mock messages stored in Redis.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
			}
		case "getTestMessage":
			var args []string // expect ["kind", "recipient"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, recipient]"})
				return
			}
			kind := args[0]
			recipient := args[1]
			redisKey := fmt.Sprintf("mockmessage:%s:%s", recipient, kind)

			var messageJSON string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				messageJSON, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if !errors.Is(getErr, redis.Nil) {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test message not found in Redis for key %s", redisKey)})
				return
			}

			var messageData map[string]interface{}
			if err := json.Unmarshal([]byte(messageJSON), &messageData); err != nil {
				log.Printf("Service API: Error unmarshalling message data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored message data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": messageData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})

	return r
}
