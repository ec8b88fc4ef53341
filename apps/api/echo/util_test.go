package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
	"github.com/aulaprof/aula/services/objectstore"
	inmemdb "github.com/aulaprof/aula/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

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
	extra    interface{}
}

// stubCompleter replies with reply, or fails with err.
type stubCompleter struct {
	reply string
	err   error
}

func (sc stubCompleter) Complete(_ context.Context, text string) (string, error) {
	if sc.err != nil {
		return "", sc.err
	}
	return sc.reply + text, nil
}

type testEnv struct {
	app      *Server
	conf     *core.Config
	usrRepo  user.Repository
	subjRepo subject.Repository
	docRepo  document.Repository
	store    *objectstore.Filesystem
}

func testConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Aula",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			MaxUploadSize:             1 << 20,
			SessionCacheSize:          100,
		},
		Chat: core.ChatConfig{FallbackReply: "Sorry, an error occurred while processing your message."},
	}
}

func newTranslator() ut.Translator {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func setup(t *testing.T, completer chat.Completer) *testEnv {
	t.Helper()
	conf := testConfig()

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.NewDB()
	env := &testEnv{
		conf:     conf,
		usrRepo:  inmemdb.NewUserRepository(db),
		subjRepo: inmemdb.NewSubjectRepository(db),
		docRepo:  inmemdb.NewDocumentRepository(db),
	}

	store, err := objectstore.NewFilesystem(t.TempDir(), "http://media.test")
	if err != nil {
		t.Fatalf("NewFilesystem(): %v", err)
	}
	if _, err = document.EnsureBuckets(context.Background(), store, document.Flows...); err != nil {
		t.Fatalf("EnsureBuckets(): %v", err)
	}
	env.store = store

	subjSvc := subject.NewService(env.subjRepo)
	docSvc := document.NewService(store, env.docRepo, subjSvc, document.Options{})
	subjSvc.GuardDeletion(docSvc)

	if completer == nil {
		completer = stubCompleter{reply: "echo: "}
	}

	env.app = NewServer(ServerDeps{
		Conf:           conf,
		UserSvc:        user.NewService(env.usrRepo),
		SubjectSvc:     subjSvc,
		DocumentSvc:    docSvc,
		ChatHub:        chat.NewHub(completer, conf.Chat.FallbackReply, core.DiscardLogger{}, 10, time.Hour),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return env
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	token, err := env.app.Tokens().GenerateToken(env.app.Tokens().Claims(usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func (env *testEnv) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
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

type formFile struct {
	name        string
	contentType string
	data        []byte
}

// newUploadRequest builds a multipart upload with the files under "files[]".
func newUploadRequest(t *testing.T, path, token string, fields map[string]string, files ...formFile) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(): %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files[]"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart(): %v", err)
		}
		_, _ = part.Write(f.data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Close(): %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (env *testEnv) objectExists(t *testing.T, bucket, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(env.store.Root(), bucket, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return err == nil
}
