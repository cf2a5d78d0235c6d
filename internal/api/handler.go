package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"telco-billing/internal/billing"
	"telco-billing/internal/notification"
	"telco-billing/internal/payment"
	"telco-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	billing    *billing.Service
	payments   *payment.Service
	dispatcher *notification.Dispatcher
}

// NewHandler creates a new HTTP handler
func NewHandler(billingService *billing.Service, paymentService *payment.Service, dispatcher *notification.Dispatcher) *Handler {
	return &Handler{
		billing:    billingService,
		payments:   paymentService,
		dispatcher: dispatcher,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bills/generate", h.generateBill)
		v1.GET("/bills/:id", h.getBill)
		v1.GET("/bills/number/:number", h.getBillByNumber)
		v1.GET("/bills/user/:userId", h.getUserBills)
		v1.GET("/bills/user/:userId/unpaid", h.getUnpaidBills)

		v1.POST("/payments", h.processPayment)
		v1.GET("/payments/:id", h.getPayment)
		v1.GET("/payments/transaction/:txId", h.getPaymentByTransaction)
		v1.GET("/payments/user/:userId", h.getUserPayments)
		v1.GET("/payments/bill/:billId", h.getBillPayments)

		v1.POST("/notifications", h.sendNotification)
		v1.GET("/notifications/:id", h.getNotification)
		v1.GET("/notifications/user/:userId", h.getUserNotifications)
		v1.GET("/notifications/user/:userId/history", h.getNotificationHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type generateBillRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// generateBill handles bill generation
func (h *Handler) generateBill(c *gin.Context) {
	var req generateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	bill, items, err := h.billing.GenerateBill(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate bill",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"bill":  bill,
		"items": items,
	})
}

// getBill handles get bill by ID
func (h *Handler) getBill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, items, err := h.billing.GetBill(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bill not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bill":  bill,
		"items": items,
	})
}

// getBillByNumber handles get bill by bill number
func (h *Handler) getBillByNumber(c *gin.Context) {
	bill, err := h.billing.GetBillByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bill not found"})
		return
	}
	c.JSON(http.StatusOK, bill)
}

// getUserBills handles listing a user's bills
func (h *Handler) getUserBills(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	bills, err := h.billing.GetUserBills(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bills"})
		return
	}
	c.JSON(http.StatusOK, bills)
}

// getUnpaidBills handles listing a user's unpaid bills
func (h *Handler) getUnpaidBills(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	bills, err := h.billing.GetUnpaidBills(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bills"})
		return
	}
	c.JSON(http.StatusOK, bills)
}

// processPayment handles payment submission
func (h *Handler) processPayment(c *gin.Context) {
	var req payment.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.payments.ProcessPayment(c.Request.Context(), &req)
	if err != nil {
		var verr *payment.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed",
				"details": verr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process payment",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getPayment handles get payment by ID
func (h *Handler) getPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// getPaymentByTransaction handles get payment by transaction id
func (h *Handler) getPaymentByTransaction(c *gin.Context) {
	p, err := h.payments.GetPaymentByTransaction(c.Request.Context(), c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// getUserPayments handles listing a user's payments
func (h *Handler) getUserPayments(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	payments, err := h.payments.GetUserPayments(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// getBillPayments handles listing payments against a bill
func (h *Handler) getBillPayments(c *gin.Context) {
	billID, ok := pathID(c, "billId")
	if !ok {
		return
	}

	payments, err := h.payments.GetBillPayments(c.Request.Context(), billID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// sendNotification handles a manual notification dispatch
func (h *Handler) sendNotification(c *gin.Context) {
	var req notification.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	n, err := h.dispatcher.Dispatch(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to dispatch notification",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, n)
}

// getNotification handles get notification by ID
func (h *Handler) getNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	n, err := h.dispatcher.GetNotification(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}

// getUserNotifications handles listing a user's notifications
func (h *Handler) getUserNotifications(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ns, err := h.dispatcher.GetByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, ns)
}

// getNotificationHistory handles the paginated, sortable history view
func (h *Handler) getNotificationHistory(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	sortBy := c.DefaultQuery("sortBy", "created_at")
	sortDir := c.DefaultQuery("sortDir", "DESC")

	history, err := h.dispatcher.GetHistory(c.Request.Context(), userID, page, size, sortBy, sortDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
