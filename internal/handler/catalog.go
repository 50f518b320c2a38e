package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"pensionflow/internal/catalog"
)

// CatalogHandler serves the reference data behind the form dropdowns.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler { return &CatalogHandler{} }

func (h *CatalogHandler) FundManagers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"fund_managers": catalog.FundManagers()})
}

func (h *CatalogHandler) Schemes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"schemes": catalog.Schemes()})
}

func (h *CatalogHandler) NetBankingBanks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"banks": catalog.NetBankingBanks()})
}

// IFSC resolves the bank name for an IFSC code or prefix.
func (h *CatalogHandler) IFSC(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"]))
	name := catalog.BankNameForIFSC(code)
	if name == "" {
		respondError(w, http.StatusNotFound, "IFSC prefix not recognised")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"ifsc": code, "bank_name": name})
}

// Pincode looks up city and state. A well-formed pincode that is not in
// the directory is still a 200 with found=false.
func (h *CatalogHandler) Pincode(w http.ResponseWriter, r *http.Request) {
	res := catalog.LookupPincode(mux.Vars(r)["pin"])
	if !res.Valid {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "Enter a valid 6-digit pincode", Field: "pincode"})
		return
	}
	respondJSON(w, http.StatusOK, res)
}
