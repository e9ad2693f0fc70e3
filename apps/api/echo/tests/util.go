package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/ai"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	emailsvc "github.com/trezcool/elimu/services/email"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	kvstore "github.com/trezcool/elimu/storage/kv"
	testutil "github.com/trezcool/elimu/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// app is a fully wired server on the in-memory database and a miniredis store.
type app struct {
	echoapi.Server

	conf     *core.Config
	issuer   *auth.Issuer
	sessions *kvstore.Sessions
	mr       *miniredis.Miniredis
	gen      *fakeGenerator
	mailSvc  *emailsvc.ConsoleServiceMock

	usrRepo  user.Repository
	crsRepo  course.Repository
	asgRepo  assignment.Repository
	certRepo certificate.Repository
}

func setup(t *testing.T) *app {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	validate, translator := testutil.NewValidator(t)
	testutil.ParseEmailTemplates(t)
	store, mr := testutil.NewKV(t)

	// set up DB & repos
	db := inmemdb.Open()
	a := &app{
		conf:     conf,
		mr:       mr,
		gen:      &fakeGenerator{reply: "Keep going!"},
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		usrRepo:  inmemdb.NewUserRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		asgRepo:  inmemdb.NewAssignmentRepository(db),
		certRepo: inmemdb.NewCertificateRepository(db),
	}
	a.issuer = auth.NewIssuer(conf, kvstore.NewBlacklist(store))
	a.sessions = kvstore.NewSessions(store, conf.Auth.SessionTTL)

	// set up services
	usrSvc := user.NewService(a.usrRepo, testutil.NewHasher(), validate)
	certSvc := certificate.NewService(a.certRepo, a.crsRepo, usrSvc, a.mailSvc, logger)
	crsSvc := course.NewService(a.crsRepo, certSvc, usrSvc, validate, logger)

	// set up server
	a.Server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Issuer:         a.issuer,
		Sessions:       a.sessions,
		Attempts:       kvstore.NewAttempts(store, conf.Auth.LoginWindow),
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		CertificateSvc: certSvc,
		AssignmentSvc:  assignment.NewService(a.asgRepo, a.crsRepo, validate),
		AdminSvc:       admin.NewService(inmemdb.NewAdminRepository(db)),
		AISvc:          ai.NewService(a.gen, kvstore.NewCache(store), crsSvc, validate, conf.AI, logger),
	})
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func (a *app) createUser(t *testing.T, name, email string, role auth.Role) user.User {
	return testutil.CreateUser(t, a.usrRepo, name, email, testutil.DefaultPassword, role, true)
}

func (a *app) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, _, err := a.issuer.Issue(usr.Claim())
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (a *app) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	a.ServeHTTP(rec, req)
	return rec
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(context.Context, string, int, float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply, g.err
}

func (g *fakeGenerator) set(reply string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reply, g.err = reply, err
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, a *app, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, a.do(req, rec))
		})
	}
}
