package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/restrictedd/pkg/access"
	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/logging"
	"github.com/opencatalog/restrictedd/pkg/notification"
	"github.com/opencatalog/restrictedd/pkg/redaction"
	"github.com/opencatalog/restrictedd/pkg/restriction"
)

type response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error"`
}

func testServer(t *testing.T) (*Server, *notification.MemoryMailer) {
	t.Helper()

	source := catalog.NewMemorySource()
	restricted := catalog.Record{
		"id":                          "r-sec",
		"package_id":                  "p1",
		"name":                        "Secret Data",
		"format":                      "CSV",
		"url":                         "https://example.org/secret.csv",
		restriction.FieldLevel:        "only_allowed_users",
		restriction.FieldAllowedUsers: "alice",
	}
	source.AddResource(restricted)
	source.AddPackage(catalog.Record{
		"id":        "p1",
		"owner_org": "org-1",
		"resources": []catalog.Record{restricted},
	})
	source.AddViews("r-sec", []catalog.Record{{"id": "v1"}})
	source.AddUser(catalog.Record{"name": "bob", "email": "bob@example.org"})
	source.AllowPackageUpdate("owner", "p1")

	mailer := notification.NewMemoryMailer()
	dispatcher := notification.NewDispatcher(
		source,
		notification.NewTemplateSource(afero.NewMemMapFs(), ""),
		mailer,
		notification.Config{SiteTitle: "Portal", SiteURL: "https://data.example.org", AdminEmail: "admin@example.org"},
		logging.App,
	)

	walker := redaction.NewWalker(source, access.NewEngine(source))
	return New(&Config{ListenAddr: "127.0.0.1", Port: 0}, walker, dispatcher), mailer
}

func doRequest(t *testing.T, server *Server, method, target, user string, body interface{}) (*httptest.ResponseRecorder, response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set(userHeader, user)
	}

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	var resp response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func TestCheckAccessEndpoint(t *testing.T) {
	t.Run("grant", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodPost, "/api/3/action/restricted_check_access", "alice",
			map[string]string{"package_id": "p1", "resource_id": "r-sec"})

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, resp.Success)

		var decision struct {
			Success bool   `json:"success"`
			Msg     string `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &decision))
		assert.True(t, decision.Success)
		assert.Empty(t, decision.Msg)
		assert.Equal(t, int64(0), server.DecisionsDenied())
	})

	t.Run("denial with reason", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet,
			"/api/3/action/restricted_check_access?package_id=p1&resource_id=r-sec", "mallory", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, resp.Success)

		var decision struct {
			Success bool   `json:"success"`
			Msg     string `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &decision))
		assert.False(t, decision.Success)
		assert.Equal(t, "Resource access restricted to allowed users only", decision.Msg)
		assert.Equal(t, int64(1), server.DecisionsDenied())
	})

	t.Run("missing package_id", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodPost, "/api/3/action/restricted_check_access", "alice",
			map[string]string{"resource_id": "r-sec"})

		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Validation Error", resp.Error.Type)
		assert.Equal(t, "Missing package_id", resp.Error.Message)
	})

	t.Run("unknown package", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet,
			"/api/3/action/restricted_check_access?package_id=nope&resource_id=r-sec", "alice", nil)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Not Found Error", resp.Error.Type)
	})
}

func TestPackageShowEndpoint(t *testing.T) {
	t.Run("anonymous requester gets the redacted record", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet, "/api/3/action/package_show?id=p1", "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.True(t, resp.Success)

		var pkg struct {
			Resources []map[string]interface{} `json:"resources"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &pkg))
		require.Len(t, pkg.Resources, 1)
		assert.Equal(t, redaction.SentinelID, pkg.Resources[0]["id"])
		assert.Equal(t, "r-sec", pkg.Resources[0]["restricted_id"])
		assert.NotContains(t, pkg.Resources[0], "url")
	})

	t.Run("editor sees the full record", func(t *testing.T) {
		server, _ := testServer(t)

		_, resp := doRequest(t, server, http.MethodGet, "/api/3/action/package_show?id=p1", "owner", nil)

		var pkg struct {
			Resources []map[string]interface{} `json:"resources"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &pkg))
		require.Len(t, pkg.Resources, 1)
		assert.Equal(t, "r-sec", pkg.Resources[0]["id"])
		assert.Equal(t, "https://example.org/secret.csv", pkg.Resources[0]["url"])
	})

	t.Run("missing id", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet, "/api/3/action/package_show", "alice", nil)

		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.Equal(t, "Missing id", resp.Error.Message)
	})
}

func TestResourceViewListEndpoint(t *testing.T) {
	t.Run("sentinel id yields an empty list", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet,
			"/api/3/action/resource_view_list?id="+redaction.SentinelID, "mallory", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "[]", strings.TrimSpace(string(resp.Result)))
	})

	t.Run("allow-listed user sees views", func(t *testing.T) {
		server, _ := testServer(t)

		_, resp := doRequest(t, server, http.MethodGet, "/api/3/action/resource_view_list?id=r-sec", "alice", nil)

		var views []map[string]interface{}
		require.NoError(t, json.Unmarshal(resp.Result, &views))
		assert.Len(t, views, 1)
	})
}

func TestResourceUpdatedHook(t *testing.T) {
	t.Run("notifies newly allowed users", func(t *testing.T) {
		server, mailer := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodPost, "/hooks/resource_updated", "",
			map[string]interface{}{
				"previous_allowed_users": "alice",
				"resource": map[string]interface{}{
					"id":                          "r-sec",
					"package_id":                  "p1",
					"name":                        "Secret Data",
					restriction.FieldAllowedUsers: "alice,bob",
				},
			})

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, resp.Success)

		messages := mailer.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "bob@example.org", messages[0].Address)
		assert.Equal(t, "admin@example.org", messages[1].Address)
	})

	t.Run("accepts a list-typed allow-list", func(t *testing.T) {
		server, mailer := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodPost, "/hooks/resource_updated", "",
			map[string]interface{}{
				"previous_allowed_users": "",
				"resource": map[string]interface{}{
					"id":                          "r-sec",
					"package_id":                  "p1",
					"name":                        "Secret Data",
					restriction.FieldAllowedUsers: []interface{}{"bob"},
				},
			})

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, resp.Success)

		messages := mailer.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "bob@example.org", messages[0].Address)
	})

	t.Run("rejects non-POST requests", func(t *testing.T) {
		server, _ := testServer(t)

		recorder, resp := doRequest(t, server, http.MethodGet, "/hooks/resource_updated", "", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
		assert.False(t, resp.Success)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		server, _ := testServer(t)

		req := httptest.NewRequest(http.MethodPost, "/hooks/resource_updated", strings.NewReader("{not json"))
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestRequestCounter(t *testing.T) {
	server, _ := testServer(t)

	doRequest(t, server, http.MethodGet, "/api/3/action/package_show?id=p1", "alice", nil)
	doRequest(t, server, http.MethodGet, "/api/3/action/resource_view_list?id=r-sec", "alice", nil)

	assert.Equal(t, int64(2), server.RequestsServed())
}
