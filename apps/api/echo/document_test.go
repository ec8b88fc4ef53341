package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/testutil"
)

var pdfData = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func Test_documentApi_queryFlows(t *testing.T) {
	env := setup(t, nil)
	prof := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@aula.test", "", true)

	rec := env.run(t, httpTest{method: http.MethodGet, path: "/v1/flows", token: env.getToken(t, prof)})
	require.Equal(t, http.StatusOK, rec.Code)

	var flows []FlowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flows))
	if assert.Len(t, flows, len(document.Flows)) {
		assert.Equal(t, "files", flows[0].Name)
		assert.Equal(t, []string{"documents", "syllabi", "resources"}, flows[0].Folders)
		assert.Contains(t, flows[0].AllowedTypes, document.TypePNG)
		assert.Equal(t, []string{document.TypePDF}, flows[2].AllowedTypes)
		assert.True(t, flows[2].RequireTitle)
	}
}

func Test_documentApi_upload(t *testing.T) {
	env := setup(t, nil)

	prof := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@aula.test", "", true)
	other := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@aula.test", "", true)
	token := env.getToken(t, prof)
	web := testutil.CreateSubject(t, env.subjRepo, prof, "Advanced Web Systems")
	notMine := testutil.CreateSubject(t, env.subjRepo, other, "Not Mine")

	pdf := formFile{name: "syllabus.pdf", contentType: document.TypePDF, data: pdfData}
	exe := formFile{name: "virus.exe", contentType: "application/x-msdownload", data: []byte("MZ")}

	type want struct {
		code     int
		uploaded int
		rejected int
		err      string
	}
	tests := []struct {
		name   string
		path   string
		fields map[string]string
		files  []formFile
		want   want
	}{
		{name: "unknown flow", path: "/v1/subjects/" + web.ID + "/videos", files: []formFile{pdf}, want: want{code: http.StatusNotFound, err: `{"error":"not found"}`}},
		{name: "not owner", path: "/v1/subjects/" + notMine.ID + "/files", files: []formFile{pdf}, want: want{code: http.StatusNotFound, err: `{"error":"subject not found"}`}},
		{name: "no files", path: "/v1/subjects/" + web.ID + "/files", want: want{code: http.StatusBadRequest, err: `{"files":"select at least one file"}`}},
		{
			name: "invalid folder", path: "/v1/subjects/" + web.ID + "/files", fields: map[string]string{"folder": "secret"},
			files: []formFile{pdf}, want: want{code: http.StatusBadRequest, err: `{"folder":"invalid folder"}`},
		},
		{
			name: "pdf flow needs a title", path: "/v1/subjects/" + web.ID + "/pdfs",
			files: []formFile{pdf}, want: want{code: http.StatusBadRequest, err: `{"title":"a title is required"}`},
		},
		{
			name: "continue on rejection", path: "/v1/subjects/" + web.ID + "/files", fields: map[string]string{"folder": "resources"},
			files: []formFile{pdf, exe, {name: "diagram.png", contentType: document.TypePNG, data: []byte("\x89PNG\r\n\x1a\n")}},
			want:  want{code: http.StatusOK, uploaded: 2, rejected: 1},
		},
		{
			name: "pdf flow", path: "/v1/subjects/" + web.ID + "/pdfs", fields: map[string]string{"title": "Week 1"},
			files: []formFile{pdf}, want: want{code: http.StatusOK, uploaded: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.app.ServeHTTP(rec, newUploadRequest(t, tt.path, token, tt.fields, tt.files...))
			require.Equal(t, tt.want.code, rec.Code, rec.Body.String())

			if tt.want.err != "" {
				assert.JSONEq(t, tt.want.err, rec.Body.String())
				return
			}

			var res document.BatchResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Len(t, res.Outcomes, len(tt.files))
			assert.Equal(t, tt.want.uploaded, res.Count(document.StatusUploaded))
			assert.Equal(t, tt.want.rejected, res.Count(document.StatusRejected))
			if tt.want.rejected > 0 {
				assert.NotEmpty(t, res.Warning)
			}

			for _, o := range res.Outcomes {
				if o.Status != document.StatusUploaded {
					continue
				}
				assert.Equal(t, 100, res.Progress[o.Key])
				require.NotNil(t, o.Record)
				assert.Equal(t, "http://media.test/documents/"+o.Key, o.Record.URL)

				assert.True(t, env.objectExists(t, "documents", o.Key), o.Key)
			}
		})
	}
}

func Test_documentApi_uploadTooLarge(t *testing.T) {
	env := setup(t, nil)

	prof := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@aula.test", "", true)
	web := testutil.CreateSubject(t, env.subjRepo, prof, "Advanced Web Systems")

	big := formFile{name: "big.pdf", contentType: document.TypePDF, data: bytes.Repeat([]byte("a"), 2<<20)}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, newUploadRequest(t, "/v1/subjects/"+web.ID+"/files", env.getToken(t, prof), nil, big))

	checkCodeAndData(t, httpTest{wantCode: http.StatusRequestEntityTooLarge, wantData: marchallObj(t, httpErr{Error: "upload too large"})}, rec)
}

func Test_documentApi_queryAndDestroy(t *testing.T) {
	env := setup(t, nil)

	prof := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@aula.test", "", true)
	other := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@aula.test", "", true)
	token := env.getToken(t, prof)
	web := testutil.CreateSubject(t, env.subjRepo, prof, "Advanced Web Systems")

	upload := func(flow string, fields map[string]string, files ...formFile) document.BatchResult {
		rec := httptest.NewRecorder()
		env.app.ServeHTTP(rec, newUploadRequest(t, "/v1/subjects/"+web.ID+"/"+flow, token, fields, files...))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res document.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, len(files), res.Count(document.StatusUploaded))
		return res
	}
	docs := upload("files", nil, formFile{name: "a.pdf", contentType: document.TypePDF, data: pdfData})
	res := upload("files", map[string]string{"folder": "resources"}, formFile{name: "b.pdf", contentType: document.TypePDF, data: pdfData})
	syll := upload("syllabi", nil, formFile{name: "plan.pdf", contentType: document.TypePDF, data: pdfData})

	list := func(path, tok string) (int, []document.Record) {
		rec := env.run(t, httpTest{method: http.MethodGet, path: path, token: tok})
		var recs []document.Record
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
		}
		return rec.Code, recs
	}

	t.Run("list", func(t *testing.T) {
		code, recs := list("/v1/subjects/"+web.ID+"/files", token)
		require.Equal(t, http.StatusOK, code)
		if assert.Len(t, recs, 2) { // newest first
			assert.Equal(t, res.Outcomes[0].Record.ID, recs[0].ID)
			assert.Equal(t, docs.Outcomes[0].Record.ID, recs[1].ID)
		}

		code, recs = list("/v1/subjects/"+web.ID+"/files?folder=documents", token)
		require.Equal(t, http.StatusOK, code)
		if assert.Len(t, recs, 1) {
			assert.Equal(t, "a.pdf", recs[0].Name)
		}

		code, recs = list("/v1/subjects/"+web.ID+"/syllabi", token)
		require.Equal(t, http.StatusOK, code)
		if assert.Len(t, recs, 1) {
			assert.Equal(t, "plan.pdf", recs[0].Name)
			assert.Equal(t, "syllabi", recs[0].Folder)
		}

		code, _ = list("/v1/subjects/"+web.ID+"/files", env.getToken(t, other))
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = list("/v1/subjects/"+web.ID+"/files?folder=pdfs", token)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("destroy", func(t *testing.T) {
		id := syll.Outcomes[0].Record.ID
		key := syll.Outcomes[0].Key

		tests := []httpTest{
			{name: "unknown flow", path: "/v1/documents/videos/" + id, token: token, wantCode: http.StatusNotFound},
			{name: "wrong flow table", path: "/v1/documents/files/" + id, token: token, wantCode: http.StatusNotFound},
			{name: "not owner", path: "/v1/documents/syllabi/" + id, token: env.getToken(t, other), wantCode: http.StatusNotFound},
			{name: "deleted", path: "/v1/documents/syllabi/" + id, token: token, wantCode: http.StatusNoContent},
			{name: "already deleted", path: "/v1/documents/syllabi/" + id, token: token, wantCode: http.StatusNotFound},
		}
		for _, tt := range tests {
			tt.method = http.MethodDelete

			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, env.run(t, tt))
			})
		}

		assert.False(t, env.objectExists(t, "documents", key))

		_, recs := list("/v1/subjects/"+web.ID+"/syllabi", token)
		assert.Empty(t, recs)
	})
}
