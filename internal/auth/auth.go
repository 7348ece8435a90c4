package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	endpointLogin = "/v3/users/login/v5"

	// sessions are not told their lifetime, refresh well before the cloud drops them.
	sessionLifetime = 12 * time.Hour

	featureCode  = "92c579faa0902cbfcfcc4fc004ef67e7"
	clientType   = "3"
	customNumber = "1000001"

	extraAPIDomain = "api_domain"
)

var ErrInvalidCredentials = errors.New("auth: invalid ezviz credentials")

type Manager struct {
	sync.Mutex
	ctx           context.Context
	account       string
	password      string
	baseURL       string
	tokenLocation string
	client        *http.Client
	source        oauth2.TokenSource
	now           func() time.Time
}

type loginResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	LoginSession struct {
		SessionID   string `json:"sessionId"`
		RfSessionID string `json:"rfSessionId"`
	} `json:"loginSession"`
	LoginArea struct {
		APIDomain string `json:"apiDomain"`
	} `json:"loginArea"`
}

type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	APIDomain    string    `json:"api_domain"`
}

func NewManager(account, password, baseURL, tokenLocation string) *Manager {
	return &Manager{
		ctx:           context.Background(),
		account:       account,
		password:      password,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		tokenLocation: tokenLocation,
		client:        http.DefaultClient,
		now:           time.Now,
	}
}

// Client returns an http client that authenticates every request with the current session,
// logging in again once the session expires. A stored session is reused when still valid.
func (a *Manager) Client(ctx context.Context) *http.Client {
	a.Lock()
	defer a.Unlock()
	a.ctx = ctx

	tok, err := getTokenFromFS(a.tokenLocation)
	if err != nil {
		log.WithError(err).Debug("no stored ezviz session, logging in on first request")
		tok = nil
	}
	a.source = oauth2.ReuseTokenSource(tok, a)

	return &http.Client{
		Transport: &sessionTransport{source: a.source, base: http.DefaultTransport},
	}
}

// Endpoint returns the API URL of the region the account belongs to.
func (a *Manager) Endpoint() (string, error) {
	a.Lock()
	source := a.source
	a.Unlock()
	if source == nil {
		return "", errors.New("auth: client has not been created")
	}

	tok, err := source.Token()
	if err != nil {
		return "", err
	}
	domain, _ := tok.Extra(extraAPIDomain).(string)
	if domain == "" {
		return a.baseURL, nil
	}
	if strings.HasPrefix(domain, "http") {
		return domain, nil
	}
	return "https://" + domain, nil
}

// Token logs in to the EZVIZ cloud. It is called by the reuse source only when the cached
// session has expired.
func (a *Manager) Token() (*oauth2.Token, error) {
	hash := md5.Sum([]byte(a.password))
	form := url.Values{}
	form.Set("account", a.account)
	form.Set("password", hex.EncodeToString(hash[:]))
	form.Set("featureCode", featureCode)
	form.Set("msgType", "0")
	form.Set("bizType", "")
	form.Set("cuName", "SGFzc2lv")
	form.Set("smsCode", "")

	a.Lock()
	ctx := a.ctx
	a.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpointLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("clientType", clientType)
	req.Header.Set("customno", customNumber)
	req.Header.Set("featureCode", featureCode)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to login to ezviz: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to login to ezviz: HTTP %d", res.StatusCode)
	}

	var login loginResponse
	err = json.NewDecoder(res.Body).Decode(&login)
	if err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	switch login.Meta.Code {
	case 200:
	case 1013, 1014, 1015:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, login.Meta.Message)
	default:
		return nil, fmt.Errorf("failed to login to ezviz: code %d: %s", login.Meta.Code, login.Meta.Message)
	}

	stored := &storedToken{
		AccessToken:  login.LoginSession.SessionID,
		RefreshToken: login.LoginSession.RfSessionID,
		Expiry:       a.now().Add(sessionLifetime),
		APIDomain:    login.LoginArea.APIDomain,
	}
	err = saveTokenToFS(a.tokenLocation, stored)
	if err != nil {
		log.WithError(err).Warn("failed to persist ezviz session")
	}
	log.Info("logged in to ezviz cloud")
	return stored.token(), nil
}

func (t *storedToken) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "session",
		Expiry:       t.Expiry,
	}
	return tok.WithExtra(map[string]interface{}{extraAPIDomain: t.APIDomain})
}

type sessionTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("sessionId", tok.AccessToken)
	r.Header.Set("clientType", clientType)
	r.Header.Set("customno", customNumber)
	r.Header.Set("featureCode", featureCode)
	return t.base.RoundTrip(r)
}

func getTokenFromFS(location string) (*oauth2.Token, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()
	var tok storedToken
	err = json.NewDecoder(f).Decode(&tok)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return tok.token(), nil
}

func saveTokenToFS(location string, tok *storedToken) error {
	if location == "" {
		return nil
	}
	err := os.MkdirAll(filepath.Dir(location), 0700)
	if err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.OpenFile(location, os.O_TRUNC|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
