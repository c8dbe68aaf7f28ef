package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinotrust/winetrace/pkg/common"
	"github.com/vinotrust/winetrace/pkg/common/api"
	"github.com/vinotrust/winetrace/pkg/common/db"
	"github.com/vinotrust/winetrace/pkg/common/migrations"
	"github.com/vinotrust/winetrace/pkg/fabricclient"
	"github.com/vinotrust/winetrace/services/trace-api/models"
)

type Service struct {
	fabric *fabricclient.Client
	db     *sql.DB
	cfg    *common.Config
}

func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password", "")
		return
	}

	userID := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO users (id, username, password_hash, organization, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, req.Username, string(hashedPassword), req.Organization, req.Role, "ACTIVE")
	if err != nil {
		log.Printf("Failed to register user: %v", err)
		api.WriteError(w, http.StatusConflict, "user_exists", "Username already exists", "")
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]string{"user_id": userID, "status": "created"})
}

func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	var user models.User
	err := s.db.QueryRow(`
		SELECT id, password_hash, role, status FROM users WHERE username = $1`, req.Username).
		Scan(&user.ID, &user.PasswordHash, &user.Role, &user.Status)
	if err == sql.ErrNoRows {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", "")
		return
	} else if err != nil {
		log.Printf("DB Error: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	if user.Status != "ACTIVE" {
		api.WriteError(w, http.StatusForbidden, "account_inactive", "Account is not active", "")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", "")
		return
	}

	go func() {
		s.db.Exec("UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), user.ID)
	}()

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &common.Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			Issuer:    "winetrace-trace-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, models.TokenResponse{Token: tokenString, ExpiresAt: expirationTime.Unix()})
}

// TraceHandler returns the consumer-facing trace for a product, usually a
// scanned bottle unit. No authentication required.
func (s *Service) TraceHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	result, err := s.fabric.Evaluate("ConsumerContract", "TraceProduct", productID)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "not_found", "Product not found", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func (s *Service) AuditHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	result, err := s.fabric.Evaluate("RegulatorContract", "AuditTrace", productID)
	if err != nil {
		log.Printf("Audit failed: %v", err)
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Audit query failed", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func (s *Service) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	result, err := s.fabric.Evaluate("ConsumerContract", "VerifyTraceCode", string(payload))
	if err != nil {
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Verification failed", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

// GenerateTraceCodeHandler issues a unit on-chain and persists the QR
// payload off-chain for label reprints.
func (s *Service) GenerateTraceCodeHandler(w http.ResponseWriter, r *http.Request) {
	lotID := mux.Vars(r)["lotId"]

	var req models.TraceCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UnitID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "unit_id is required", "")
		return
	}

	result, err := s.fabric.Submit("RetailerContract", "GenerateTraceCode", lotID, req.UnitID)
	if err != nil {
		log.Printf("GenerateTraceCode failed: %v", err)
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Failed to issue trace code", "")
		return
	}

	var code struct {
		ProductID string `json:"productId"`
	}
	if err := json.Unmarshal(result, &code); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Unexpected chaincode response", "")
		return
	}

	claims, _ := common.ClaimsFrom(r)
	issuedBy := ""
	if claims != nil {
		issuedBy = claims.UserID
	}

	recordID := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO trace_codes (id, product_id, lot_id, payload, issued_by)
		VALUES ($1, $2, $3, $4, $5)`,
		recordID, code.ProductID, lotID, string(result), issuedBy)
	if err != nil {
		log.Printf("Failed to save trace code: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(result)
}

func (s *Service) ListTraceCodesHandler(w http.ResponseWriter, r *http.Request) {
	lotID := mux.Vars(r)["lotId"]

	rows, err := s.db.Query(`
		SELECT id, product_id, lot_id, payload, issued_by, created_at
		FROM trace_codes WHERE lot_id = $1 ORDER BY created_at`, lotID)
	if err != nil {
		log.Printf("DB Error: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	defer rows.Close()

	codes := []models.TraceCodeRecord{}
	for rows.Next() {
		var c models.TraceCodeRecord
		if err := rows.Scan(&c.ID, &c.ProductID, &c.LotID, &c.Payload, &c.IssuedBy, &c.CreatedAt); err != nil {
			api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
			return
		}
		codes = append(codes, c)
	}

	api.WriteSuccess(w, http.StatusOK, codes)
}

func (s *Service) CreateShipmentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.ShipmentID == "" {
		req.ShipmentID = "SHIP-" + uuid.NewString()
	}

	products, _ := json.Marshal(req.Products)
	props, _ := json.Marshal(req.Properties)

	result, err := s.fabric.Submit("DistributorContract", "CreateShipmentGroup",
		req.ShipmentID, string(products), req.TargetOrg, req.TransporterOrg, string(props))
	if err != nil {
		log.Printf("CreateShipmentGroup failed: %v", err)
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Failed to create shipment", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(result)
}

func (s *Service) AcceptShipmentHandler(w http.ResponseWriter, r *http.Request) {
	shipmentID := mux.Vars(r)["id"]

	result, err := s.fabric.Submit("RetailerContract", "AcceptShipment", shipmentID)
	if err != nil {
		log.Printf("AcceptShipment failed: %v", err)
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Failed to accept shipment", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func (s *Service) ListShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.fabric.Evaluate("RetailerContract", "ListIncomingShipments")
	if err != nil {
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", "Failed to list shipments", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

// contractRoles gates the generic dispatch endpoints: a token may only
// submit to the contract matching its role claim.
var contractRoles = map[string]string{
	"GrowerContract":      "grower",
	"WineryContract":      "winery",
	"CarrierContract":     "carrier",
	"DistributorContract": "distributor",
	"RetailerContract":    "retailer",
	"RegulatorContract":   "regulator",
	"ConsumerContract":    "consumer",
}

type txRequest struct {
	Args []string `json:"args"`
}

// SubmitHandler is the generic write path: it maps any role contract
// operation one-to-one onto a chaincode submit.
func (s *Service) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, s.fabric.Submit)
}

// EvaluateHandler is the generic read path.
func (s *Service) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, s.fabric.Evaluate)
}

func (s *Service) dispatch(w http.ResponseWriter, r *http.Request, call func(string, string, ...string) ([]byte, error)) {
	vars := mux.Vars(r)
	contract, method := vars["contract"], vars["method"]

	requiredRole, ok := contractRoles[contract]
	if !ok {
		api.WriteError(w, http.StatusNotFound, "unknown_contract", "Unknown contract", "")
		return
	}
	claims, ok := common.ClaimsFrom(r)
	if !ok || claims.Role != requiredRole {
		api.WriteError(w, http.StatusForbidden, "forbidden", "Token role does not match contract", "")
		return
	}

	var req txRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	result, err := call(contract, method, req.Args...)
	if err != nil {
		log.Printf("%s.%s failed: %v", contract, method, err)
		api.WriteError(w, http.StatusBadGateway, "chaincode_error", err.Error(), "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result == nil {
		result = []byte("{}")
	}
	w.Write(result)
}

func (s *Service) LotStatusHandler(w http.ResponseWriter, r *http.Request) {
	lotID := mux.Vars(r)["lotId"]

	result, err := s.fabric.Evaluate("DistributorContract", "QueryLotStatus", lotID)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "not_found", "Lot not found", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func main() {
	cfg := common.LoadConfig()

	database, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer database.Close()

	if err := migrations.RunMigrations(database, cfg.Migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fabric, err := fabricclient.NewClient(
		cfg.FabricConfig,
		cfg.Channel,
		cfg.Chaincode,
		cfg.MSP,
		cfg.CertPath,
		cfg.KeyPath,
	)
	if err != nil {
		log.Printf("Warning: Fabric connection failed: %v", err)
	} else {
		defer fabric.Close()
	}

	svc := &Service{fabric: fabric, db: database, cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/auth/register", svc.RegisterHandler).Methods("POST")
	r.HandleFunc("/auth/login", svc.LoginHandler).Methods("POST")
	r.HandleFunc("/trace/{productId}", svc.TraceHandler).Methods("GET")
	r.HandleFunc("/verify", svc.VerifyHandler).Methods("POST")

	authed := r.NewRoute().Subrouter()
	authed.Use(func(next http.Handler) http.Handler {
		return common.AuthMiddleware(cfg.JWTSecret, next)
	})
	authed.HandleFunc("/trace/{productId}/audit", common.RequireRole("regulator", svc.AuditHandler)).Methods("GET")
	authed.HandleFunc("/lots/{lotId}", svc.LotStatusHandler).Methods("GET")
	authed.HandleFunc("/lots/{lotId}/trace-codes", common.RequireRole("retailer", svc.GenerateTraceCodeHandler)).Methods("POST")
	authed.HandleFunc("/lots/{lotId}/trace-codes", common.RequireRole("retailer", svc.ListTraceCodesHandler)).Methods("GET")
	authed.HandleFunc("/shipments", common.RequireRole("distributor", svc.CreateShipmentHandler)).Methods("POST")
	authed.HandleFunc("/shipments", common.RequireRole("retailer", svc.ListShipmentsHandler)).Methods("GET")
	authed.HandleFunc("/shipments/{id}/accept", common.RequireRole("retailer", svc.AcceptShipmentHandler)).Methods("POST")
	authed.HandleFunc("/tx/{contract}/{method}", svc.SubmitHandler).Methods("POST")
	authed.HandleFunc("/query/{contract}/{method}", svc.EvaluateHandler).Methods("POST")

	log.Printf("Trace API running on :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
