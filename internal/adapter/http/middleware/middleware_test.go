package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testDrift    = 60 * time.Second
	testNonceTTL = 120 * time.Second
)

type hmacMocks struct {
	clients    *mocks.MockClientStore
	encSvc     *mocks.MockEncryptionService
	sigSvc     *mocks.MockSignatureService
	nonceStore *mocks.MockNonceStore
}

func newHMACRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, hmacMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := hmacMocks{
		clients:    mocks.NewMockClientStore(ctrl),
		encSvc:     mocks.NewMockEncryptionService(ctrl),
		sigSvc:     mocks.NewMockSignatureService(ctrl),
		nonceStore: mocks.NewMockNonceStore(ctrl),
	}

	router := gin.New()
	router.POST("/test", HMACAuth(m.clients, m.encSvc, m.sigSvc, m.nonceStore, testDrift, testNonceTTL, zerolog.Nop()), handler)
	if handler == nil {
		t.Fatal("handler required")
	}
	return router, m
}

func okHandler(c *gin.Context) {
	c.JSON(200, gin.H{"ok": true})
}

func TestHMACAuth_MissingHeaders(t *testing.T) {
	router, _ := newHMACRouter(t, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_ExpiredTimestamp(t *testing.T) {
	router, _ := newHMACRouter(t, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(HeaderAccessKey, "ak_test")
	req.Header.Set(HeaderSignature, "sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Add(-120*time.Second).Unix(), 10))
	req.Header.Set(HeaderNonce, "nonce123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHMACAuth_InvalidAccessKey(t *testing.T) {
	router, m := newHMACRouter(t, okHandler)

	m.clients.EXPECT().EmitterByAccessKey(gomock.Any(), "invalid_key").Return(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(HeaderAccessKey, "invalid_key")
	req.Header.Set(HeaderSignature, "sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(HeaderNonce, "nonce123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_NonceReplay(t *testing.T) {
	router, m := newHMACRouter(t, okHandler)

	emitter := &domain.EmitterClient{Name: "auth-service", AccessKey: "ak_auth", SecretKeyEnc: "enc_secret"}
	m.clients.EXPECT().EmitterByAccessKey(gomock.Any(), "ak_auth").Return(emitter, nil)
	m.nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_auth", "nonce-used", testNonceTTL).Return(false, nil)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(HeaderAccessKey, "ak_auth")
	req.Header.Set(HeaderSignature, "sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(HeaderNonce, "nonce-used")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHMACAuth_BadSignature(t *testing.T) {
	router, m := newHMACRouter(t, okHandler)

	nowTs := time.Now().Unix()
	body := `{"transaction_id":"txn-1"}`
	emitter := &domain.EmitterClient{Name: "auth-service", AccessKey: "ak_auth", SecretKeyEnc: "enc_secret"}

	m.clients.EXPECT().EmitterByAccessKey(gomock.Any(), "ak_auth").Return(emitter, nil)
	m.nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_auth", "nonce-1", testNonceTTL).Return(true, nil)
	m.encSvc.EXPECT().Decrypt("enc_secret").Return("raw_secret", nil)
	m.sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "nonce-1", body).Return("canonical")
	m.sigSvc.EXPECT().VerifyRequest("raw_secret", "canonical", "wrong_sig").Return(false)

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set(HeaderAccessKey, "ak_auth")
	req.Header.Set(HeaderSignature, "wrong_sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(nowTs, 10))
	req.Header.Set(HeaderNonce, "nonce-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_Success(t *testing.T) {
	nowTs := time.Now().Unix()
	body := `{"transaction_id":"txn-1","amount":125000}`
	emitter := &domain.EmitterClient{Name: "settlement-service", AccessKey: "ak_settle", SecretKeyEnc: "enc_secret"}

	var capturedName string
	router, m := newHMACRouter(t, func(c *gin.Context) {
		name, _ := c.Get(CtxEmitterName)
		capturedName = name.(string)
		c.JSON(200, gin.H{"ok": true})
	})

	m.clients.EXPECT().EmitterByAccessKey(gomock.Any(), "ak_settle").Return(emitter, nil)
	m.nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_settle", "nonce-ok", testNonceTTL).Return(true, nil)
	m.encSvc.EXPECT().Decrypt("enc_secret").Return("raw_secret", nil)
	m.sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "nonce-ok", body).Return("canonical")
	m.sigSvc.EXPECT().VerifyRequest("raw_secret", "canonical", "valid_sig").Return(true)

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set(HeaderAccessKey, "ak_settle")
	req.Header.Set(HeaderSignature, "valid_sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(nowTs, 10))
	req.Header.Set(HeaderNonce, "nonce-ok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "settlement-service", capturedName)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)

	tokenSvc := mocks.NewMockTokenService(ctrl)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{KeyID: "op_admin"}, nil)

	var capturedKeyID string
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		kid, _ := c.Get(CtxOperatorKeyID)
		capturedKeyID = kid.(string)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op_admin", capturedKeyID)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}
