package auth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/events"
	"github.com/trustbridge/auth/services/refreshtoken"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
	"github.com/trustbridge/auth/services/wallet"
	"github.com/trustbridge/auth/session"
	"github.com/trustbridge/auth/testutils"
	"gorm.io/gorm"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.SecurityEvent
}

func (p *capturingPublisher) Publish(_ context.Context, event events.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) ofType(eventType string) []events.SecurityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []events.SecurityEvent
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type capturingMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *capturingMailer) SendSecurityAlert(_, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

type testEnv struct {
	service   *Service
	wallets   *wallet.Service
	store     *refreshtoken.Service
	db        *gorm.DB
	publisher *capturingPublisher
	mailer    *capturingMailer
	config    *config.Config
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testutils.GetTestConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	db := testutils.SetupTestDB(t, &wallet.User{}, &refreshtoken.RefreshToken{})
	wallets := wallet.NewService(db, cfg, nil)
	codec := tokens.NewService(cfg, nil)
	store := refreshtoken.NewService(db, cfg, nil)
	publisher := &capturingPublisher{}
	mailer := &capturingMailer{}

	return &testEnv{
		service:   NewService(cfg, wallets, codec, store, revocation.NewMemoryStore(), publisher, mailer, nil),
		wallets:   wallets,
		store:     store,
		db:        db,
		publisher: publisher,
		mailer:    mailer,
		config:    cfg,
	}
}

func (env *testEnv) setTokenField(t *testing.T, token, column string, value any) {
	t.Helper()
	err := env.db.Model(&refreshtoken.RefreshToken{}).
		Where("token = ?", token).
		Update(column, value).Error
	require.NoError(t, err)
}

func newTestWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signPersonal(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func (env *testEnv) login(t *testing.T, key *ecdsa.PrivateKey, address, deviceID string) *Result {
	t.Helper()
	ctx := context.Background()

	nonce, err := env.wallets.RequestNonce(ctx, address)
	require.NoError(t, err)
	signature := signPersonal(t, key, wallet.ChallengeMessage(env.config.App.Name, nonce))

	result, err := env.service.Login(ctx, address, signature, session.DeviceInfo{
		Device:    session.DeviceDesktop,
		DeviceID:  deviceID,
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	}, "")
	require.NoError(t, err)
	return result
}

func device(id string) session.DeviceInfo {
	return session.DeviceInfo{
		Device:    session.DeviceDesktop,
		DeviceID:  id,
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues both tokens and seeds a family", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)

		result := env.login(t, key, address, "device-1")
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, "device-1", result.DeviceID)

		record, err := env.store.FindAny(ctx, result.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, record.Family)
		assert.Equal(t, address, record.UserID)
	})

	t.Run("invalid signature creates no token record", func(t *testing.T) {
		env := newTestEnv(t)
		_, address := newTestWallet(t)

		_, err := env.wallets.RequestNonce(ctx, address)
		require.NoError(t, err)

		_, err = env.service.Login(ctx, address, "0xdeadbeef", device("device-1"), "")
		assert.ErrorIs(t, err, wallet.ErrInvalidSignature)

		count, err := env.store.CountActive(ctx, address)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("cap leaves exactly N active with the oldest evicted", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)

		var results []*Result
		for i := 0; i < 7; i++ {
			result := env.login(t, key, address, fmt.Sprintf("d%d", i+1))
			results = append(results, result)
			// Stagger creation times so eviction order is deterministic.
			env.setTokenField(t, result.RefreshToken, "created_at", time.Now().Add(time.Duration(i-10)*time.Minute))
		}

		count, err := env.store.CountActive(ctx, address)
		require.NoError(t, err)
		assert.EqualValues(t, 5, count)

		devices, err := env.service.ActiveDevices(ctx, address)
		require.NoError(t, err)
		ids := make([]string, 0, len(devices))
		for _, d := range devices {
			ids = append(ids, d.DeviceID)
		}
		assert.NotContains(t, ids, "d1")
		assert.NotContains(t, ids, "d2")
		assert.Len(t, ids, 5)

		// The evicted device's cookie no longer refreshes.
		_, err = env.service.Refresh(ctx, results[0].RefreshToken, "application/json", device("d1"), "")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation succeeds exactly once per token", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		first, err := env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		require.NoError(t, err)
		assert.NotEmpty(t, first.AccessToken)
		assert.NotEqual(t, login.RefreshToken, first.RefreshToken)

		// Replay of the rotated-away token: reuse, family-wide revocation.
		_, err = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		assert.ErrorIs(t, err, ErrTokenReuse)

		// The winner of the rotation is collateral damage.
		_, err = env.service.Refresh(ctx, first.RefreshToken, "application/json", device("device-1"), "")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)

		reuse := env.publisher.ofType(events.EventTokenReuse)
		require.Len(t, reuse, 1)
		assert.Equal(t, address, reuse[0].UserID)
	})

	t.Run("rotation does not change the active count", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		before, err := env.store.CountActive(ctx, address)
		require.NoError(t, err)

		_, err = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		require.NoError(t, err)

		after, err := env.store.CountActive(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("bad content type rejected before the store", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.service.Refresh(ctx, "anything", "text/plain", device("device-1"), "")
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = env.service.Refresh(ctx, "anything", "", device("device-1"), "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("json with charset parameter accepted", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		_, err := env.service.Refresh(ctx, login.RefreshToken, "application/json; charset=utf-8", device("device-1"), "")
		assert.NoError(t, err)
	})

	t.Run("origin outside the allow-list rejected", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *config.Config) {
			cfg.RefreshToken.AllowedOrigins = []string{"https://app.trustbridge.example"}
		})

		_, err := env.service.Refresh(ctx, "anything", "application/json", device("device-1"), "https://evil.example")
		assert.ErrorIs(t, err, ErrInvalidOrigin)
	})

	t.Run("unknown token", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.service.Refresh(ctx, "never-issued", "application/json", device("device-1"), "")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("expired token is revoked and rejected", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		env.setTokenField(t, login.RefreshToken, "expires_at", time.Now().Add(-time.Minute))

		_, err := env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		assert.ErrorIs(t, err, ErrRefreshTokenExpired)

		record, err := env.store.FindAny(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.True(t, record.IsRevoked)
	})

	t.Run("origin pinning mismatch treated as reuse", func(t *testing.T) {
		origin := "https://app.trustbridge.example"
		env := newTestEnv(t, func(cfg *config.Config) {
			cfg.RefreshToken.AllowedOrigins = []string{origin, "https://other.trustbridge.example"}
		})
		key, address := newTestWallet(t)

		nonce, err := env.wallets.RequestNonce(ctx, address)
		require.NoError(t, err)
		signature := signPersonal(t, key, wallet.ChallengeMessage(env.config.App.Name, nonce))
		login, err := env.service.Login(ctx, address, signature, device("device-1"), origin)
		require.NoError(t, err)

		_, err = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "https://other.trustbridge.example")
		assert.ErrorIs(t, err, ErrOriginMismatch)

		record, err := env.store.FindAny(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.True(t, record.IsRevoked)
	})

	t.Run("concurrent refresh of one token has one winner", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		const racers = 2
		results := make([]*Result, racers)
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
			}(i)
		}
		wg.Wait()

		winners := 0
		for i := 0; i < racers; i++ {
			if errs[i] == nil {
				winners++
				assert.NotEmpty(t, results[i].AccessToken)
			} else {
				assert.ErrorIs(t, errs[i], ErrTokenReuse)
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("reuse sends an alert when the user has an email", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		err := env.db.Model(&wallet.User{}).
			Where("wallet_address = ?", address).
			Update("email", "owner@example.com").Error
		require.NoError(t, err)

		_, err = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		require.NoError(t, err)
		_, err = env.service.Refresh(ctx, login.RefreshToken, "application/json", device("device-1"), "")
		assert.ErrorIs(t, err, ErrTokenReuse)

		assert.NotEmpty(t, env.mailer.subjects)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the presented token and the access token", func(t *testing.T) {
		env := newTestEnv(t)
		key, address := newTestWallet(t)
		login := env.login(t, key, address, "device-1")

		err := env.service.Logout(ctx, LogoutParams{
			Identity:     address,
			RefreshToken: login.RefreshToken,
			AccessToken:  login.AccessToken,
		})
		require.NoError(t, err)

		record, err := env.store.FindAny(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.True(t, record.IsRevoked)

		revoked, err := env.service.IsAccessTokenRevoked(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("foreign token forces family revocation", func(t *testing.T) {
		env := newTestEnv(t)
		aliceKey, alice := newTestWallet(t)
		_, mallory := newTestWallet(t)
		login := env.login(t, aliceKey, alice, "device-1")

		err := env.service.Logout(ctx, LogoutParams{
			Identity:     mallory,
			RefreshToken: login.RefreshToken,
		})
		require.NoError(t, err)

		count, err := env.store.CountActive(ctx, alice)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestLogoutAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	key, address := newTestWallet(t)

	login := env.login(t, key, address, "device-1")
	env.login(t, key, address, "device-2")
	env.login(t, key, address, "device-3")

	err := env.service.LogoutAll(ctx, address, login.AccessToken)
	require.NoError(t, err)

	count, err := env.store.CountActive(ctx, address)
	require.NoError(t, err)
	assert.Zero(t, count)

	revoked, err := env.service.IsAccessTokenRevoked(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestLogoutDevice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	key, address := newTestWallet(t)

	first := env.login(t, key, address, "device-1")
	env.login(t, key, address, "device-2")

	t.Run("other device", func(t *testing.T) {
		current, err := env.service.LogoutDevice(ctx, address, "device-2", first.RefreshToken)
		require.NoError(t, err)
		assert.False(t, current)

		devices, err := env.service.ActiveDevices(ctx, address)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "device-1", devices[0].DeviceID)
	})

	t.Run("own device", func(t *testing.T) {
		current, err := env.service.LogoutDevice(ctx, address, "device-1", first.RefreshToken)
		require.NoError(t, err)
		assert.True(t, current)

		devices, err := env.service.ActiveDevices(ctx, address)
		require.NoError(t, err)
		assert.Empty(t, devices)
	})
}

func TestPasswordSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.service.Register(ctx, "alice@example.com", "Alice", "Password123", "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)

	result, err := env.service.LoginPassword(ctx, "alice@example.com", "Password123", device("device-1"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)

	rotated, err := env.service.Refresh(ctx, result.RefreshToken, "application/json", device("device-1"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
}
