package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trading-go/internal/models"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db}
}

// AccountView is the JSON shape of one ledger account.
type AccountView struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Leverage string `json:"leverage"`
	IsActive bool   `json:"is_active"`
}

// AccountsHandler returns all persisted accounts.
func (h *APIHandler) AccountsHandler(w http.ResponseWriter, r *http.Request) {
	var rows []models.Account
	if err := h.db.Order("created_at desc").Find(&rows).Error; err != nil {
		h.log.Error("Failed to get accounts from database", zap.Error(err))
		http.Error(w, "Failed to get accounts", http.StatusInternalServerError)
		return
	}

	accounts := make([]AccountView, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, AccountView{
			UUID:     row.UUID,
			Name:     row.Name,
			Leverage: row.Leverage,
			IsActive: row.IsActive,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

// TransactionView is the JSON shape of one audit trail entry.
type TransactionView struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id,omitempty"`
	ExecutedAt  string `json:"executed_at"`
}

// TransactionsHandler returns an account's transaction history, oldest first.
// The account is selected with the ?account= query parameter.
func (h *APIHandler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountUUID := r.URL.Query().Get("account")
	if accountUUID == "" {
		http.Error(w, "missing account parameter", http.StatusBadRequest)
		return
	}

	var rows []models.TransactionRow
	err := h.db.Where("account_uuid = ?", accountUUID).
		Order("executed_at asc, id asc").Find(&rows).Error
	if err != nil {
		h.log.Error("Failed to get transactions from database", zap.Error(err))
		http.Error(w, "Failed to get transactions", http.StatusInternalServerError)
		return
	}

	transactions := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, TransactionView{
			Type:        row.Type,
			Amount:      row.Amount,
			Currency:    row.Currency,
			Description: row.Description,
			ReferenceID: row.ReferenceID,
			ExecutedAt:  row.ExecutedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// BalanceView is the JSON shape of one currency slot of an account.
type BalanceView struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
}

// BalancesHandler returns an account's per-currency balances.
func (h *APIHandler) BalancesHandler(w http.ResponseWriter, r *http.Request) {
	accountUUID := r.URL.Query().Get("account")
	if accountUUID == "" {
		http.Error(w, "missing account parameter", http.StatusBadRequest)
		return
	}

	var rows []models.BalanceRow
	if err := h.db.Where("account_uuid = ?", accountUUID).Find(&rows).Error; err != nil {
		h.log.Error("Failed to get balances from database", zap.Error(err))
		http.Error(w, "Failed to get balances", http.StatusInternalServerError)
		return
	}

	balances := make([]BalanceView, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, BalanceView{
			Currency:  row.Currency,
			Available: row.Available,
			Reserved:  row.Reserved,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balances)
}
