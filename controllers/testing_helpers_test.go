package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/bot"
	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/primesmshub/sms-hub-api/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const operatorChat = "777"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		userInfo, exists := userInfoMap[authHeader[7:]]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	}))
}

// mockAuthMiddleware sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims:     &middleware.CustomClaims{},
		})
		c.Next()
	}
}

// testApp wires every controller against in-memory collaborators
type testApp struct {
	db        *gorm.DB
	vendor    *services.MockNumberVendor
	messenger *services.MockMessenger
	gateway   *services.MockPaymentGateway
	archive   *services.MemoryArchive
	log       *services.MemoryMessageLog
	registry  *relay.Registry
	router    *relay.Router

	users    *services.UserService
	orders   *services.OrderService
	wallets  *services.WalletService
	payments *services.PaymentService
}

func newTestApp(t *testing.T, userInfo services.UserInfoProvider) *testApp {
	t.Helper()
	config.SetConfig(&config.Config{GoEnv: "test"})

	db := setupTestDB(t)
	log := discardLogger()
	app := &testApp{
		db:        db,
		vendor:    services.NewMockNumberVendor(0.75),
		messenger: services.NewMockMessenger(),
		gateway:   services.NewMockPaymentGateway("sk_test"),
		archive:   services.NewMemoryArchive(),
		log:       services.NewMemoryMessageLog(100),
		registry:  relay.NewRegistry(),
	}
	if userInfo == nil {
		userInfo = &services.MockUserInfoProvider{}
	}

	app.users = services.NewUserService(db, userInfo)
	app.orders = services.NewOrderService(db, app.vendor, services.OrderOptions{HoldAmount: 100, RefundRatio: 0.9}, log)
	app.wallets = services.NewWalletService(db)
	app.payments = services.NewPaymentService(db, services.PaymentDeps{
		Gateway:        app.gateway,
		Archive:        app.archive,
		Messenger:      app.messenger,
		OperatorChatID: operatorChat,
		Publisher:      app.registry,
	}, log)
	app.router = relay.NewRouter(relay.RouterDeps{
		Registry:       app.registry,
		Log:            app.log,
		Messenger:      app.messenger,
		Correlations:   services.NewMemoryCorrelationStore(time.Hour),
		OperatorChatID: operatorChat,
		Logger:         log,
	})
	return app
}

func (a *testApp) createUser(t *testing.T, auth0ID string, wallet float64) *models.User {
	t.Helper()
	user := &models.User{Auth0ID: auth0ID, Name: "Test User", Email: auth0ID[len("auth0|"):] + "@example.com", Wallet: utils.ToCents(wallet)}
	require.NoError(t, a.db.Create(user).Error)
	return user
}

func (a *testApp) bot() *bot.Bot {
	return bot.New(a.messenger, a.users, a.orders, a.wallets, "", discardLogger())
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
