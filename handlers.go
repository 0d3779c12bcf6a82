package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/storefront"
	"github.com/thukatech/restock_backend/utils"
)

// respondError maps the model error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *utils.ValidationError
	var stateErr *utils.InvalidStateError
	var mergeErr *utils.InvalidMergeError
	var lookupErr *utils.ExternalLookupError

	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrorInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &mergeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": mergeErr.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	case errors.As(err, &lookupErr):
		switch lookupErr.Kind {
		case utils.LookupNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": lookupErr.Error()})
		case utils.LookupAuthInvalid:
			c.JSON(http.StatusBadGateway, gin.H{"error": lookupErr.Error()})
		case utils.LookupRateLimited:
			c.JSON(http.StatusTooManyRequests, gin.H{"error": lookupErr.Error()})
		case utils.LookupUnavailable:
			c.JSON(http.StatusBadGateway, gin.H{"error": lookupErr.Error()})
		default:
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": lookupErr.Error()})
		}
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

/* Auth */

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		token, user, err := models.LoginCheck(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

/* Daily logs */

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := models.CreateOrMergeOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if result.Merged {
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

func listLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := models.ListDailyLogs(c.Request.Context(), c.Query("date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

func listPickupLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := models.ListActivePickupLogs(c.Request.Context(), c.Query("date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

func getLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		log, err := models.GetDailyLog(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		history, err := models.GetLogHistory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"log": log, "history": history})
	}
}

func adjustLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.LogAdjustment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log, err := models.AdjustLogDetails(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func pickupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.PickupInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := models.ProcessPickup(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func receiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.ReceivingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log, err := models.ProcessReceiving(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

type flagDiscrepancyRequest struct {
	Reason string `json:"reason"`
}

func flagDiscrepancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req flagDiscrepancyRequest
		_ = c.ShouldBindJSON(&req)
		log, err := models.FlagDiscrepancy(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func deleteLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		log, err := models.DeleteDailyLog(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

type mergeLogsRequest struct {
	TargetId int `json:"target_id" binding:"required"`
	SourceId int `json:"source_id" binding:"required"`
}

func mergeLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mergeLogsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_id and source_id are required"})
			return
		}
		log, err := models.MergeLogs(c.Request.Context(), req.TargetId, req.SourceId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func duplicateGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := models.DuplicateLogGroups(c.Request.Context(), c.Query("date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, groups)
	}
}

func logHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		history, err := models.GetLogHistory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

/* Suppliers */

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		suppliers, err := models.ListSuppliers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, suppliers)
	}
}

func getSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func deleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		supplier, err := models.DeleteSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

/* Products */

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func updateProductDescriptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.UpdateProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		product, err := models.UpdateProductDescription(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/* Billing */

func upsertBillingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewBillingEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := models.UpsertBillingEntry(c.Request.Context(), logId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func getBillingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logId, ok := pathId(c, "id")
		if !ok {
			return
		}
		entry, err := models.GetBillingEntryByLog(c.Request.Context(), logId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

type setGSTRequest struct {
	GstEnabled *bool `json:"gst_enabled" binding:"required"`
}

func setGSTHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entryId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req setGSTRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := models.SetGSTEnabled(c.Request.Context(), entryId, *req.GstEnabled)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

type attachProofRequest struct {
	Kind models.BillingProofKind `json:"kind"`
	Url  string                  `json:"url" binding:"required"`
}

func attachBillingProofHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entryId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req attachProofRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Kind == "" {
			req.Kind = models.BillingProofOther
		}
		proof, err := models.AttachBillingProof(c.Request.Context(), entryId, req.Kind, req.Url)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, proof)
	}
}

func deleteBillingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entryId, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteBillingEntry(c.Request.Context(), entryId); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func unbilledLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := models.ListUnbilledLogs(c.Request.Context(), c.Query("date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

/* Purchase orders */

func createPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		po, err := models.CreatePurchaseOrderFromLogs(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, po)
	}
}

func listPurchaseOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		supplierId, _ := strconv.Atoi(c.Query("supplier_id"))
		pos, err := models.ListPurchaseOrders(c.Request.Context(), supplierId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pos)
	}
}

func getPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		po, err := models.GetPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, po)
	}
}

type updatePOStatusRequest struct {
	Status models.PurchaseOrderStatus `json:"status" binding:"required"`
}

func updatePurchaseOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req updatePOStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		po, err := models.UpdatePurchaseOrderStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, po)
	}
}

/* Summaries and reports */

func supplierSummariesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := models.GetSupplierSummaries(c.Request.Context(), c.Query("date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func dateSummariesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := models.GetDateSummaries(c.Request.Context(), c.Query("from"), c.Query("to"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}

func exportReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := models.ExportDailyLogReport(c.Request.Context(), c.Query("from"), c.Query("to"))
		if err != nil {
			respondError(c, err)
			return
		}
		filename := fmt.Sprintf("daily-logs-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	}
}

func exportSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := models.ExportShopSnapshot(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		filename := fmt.Sprintf("shop-snapshot-%s.json", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/json", []byte(snapshot))
	}
}

/* Storefront */

func lookupStorefrontOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := storefront.LookupOrder(c.Request.Context(), c.Query("order_number"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createStorefrontConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStorefrontConfig
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg, err := models.CreateStorefrontConfig(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cfg)
	}
}

func updateStorefrontConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewStorefrontConfig
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg, err := models.UpdateStorefrontConfig(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

func listStorefrontConfigsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		configs, err := models.ListStorefrontConfigs(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, configs)
	}
}

func deleteStorefrontConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteStorefrontConfig(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

/* Users (admin) */

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

type setUserEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func setUserEnabledHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req setUserEnabledRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
			return
		}
		user, err := models.SetUserEnabled(c.Request.Context(), id, *req.Enabled)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type changePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
			return
		}
		if err := models.UpdateUserPassword(c.Request.Context(), id, req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

/* Ops */

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := models.ReplayFailedSyncMessages(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": count, "publish_status": models.OutboxPublishStatusPending})
	}
}
