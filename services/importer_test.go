package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvtogithub/api"
	"csvtogithub/config"
)

// fakeGitHub はインポートが呼ぶ一連のエンドポイントを模倣します
// インポートは逐次実行なのでロックは不要です
type fakeGitHub struct {
	server *httptest.Server

	issueTitles   []string
	createdLabels []string
	addedItems    int
	statusSets    []string // 設定されたオプションID
	failTitle     string   // このタイトルのイシュー作成を500で失敗させる
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/user":
		fmt.Fprint(w, `{"login":"octo"}`)

	case r.URL.Path == "/graphql":
		f.handleGraphQL(w, r)

	case r.URL.Path == "/repos/octo/demo/labels" && r.Method == "GET":
		fmt.Fprint(w, `[{"name":"bug"}]`)

	case r.URL.Path == "/repos/octo/demo/labels" && r.Method == "POST":
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.createdLabels = append(f.createdLabels, payload["name"])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"name":%q}`, payload["name"])

	case r.URL.Path == "/repos/octo/demo/issues" && r.Method == "POST":
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		title, _ := payload["title"].(string)

		if f.failTitle != "" && title == f.failTitle {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"Server Error"}`)
			return
		}

		f.issueTitles = append(f.issueTitles, title)
		number := len(f.issueTitles)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"number":%d,"node_id":"I_%d"}`, number, number)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}
}

func (f *fakeGitHub) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case strings.Contains(body.Query, "projectV2(number:$number)"):
		fmt.Fprint(w, `{"data":{"user":{"projectV2":{
			"id":"PVT_1","title":"Demo Project",
			"fields":{"nodes":[
				{"id":"F_TITLE","name":"Title"},
				{"id":"F_STATUS","name":"Status","options":[
					{"id":"OPT_TODO","name":"Todo"},
					{"id":"OPT_PROG","name":"In Progress"},
					{"id":"OPT_DONE","name":"Done"}
				]}
			]}
		}}}}`)

	case strings.Contains(body.Query, "addProjectV2ItemById"):
		f.addedItems++
		fmt.Fprintf(w, `{"data":{"addProjectV2ItemById":{"item":{"id":"ITEM_%d"}}}}`, f.addedItems)

	case strings.Contains(body.Query, "updateProjectV2ItemFieldValue"):
		optID, _ := body.Variables["optId"].(string)
		f.statusSets = append(f.statusSets, optID)
		fmt.Fprint(w, `{"data":{"updateProjectV2ItemFieldValue":{"clientMutationId":null}}}`)

	default:
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"unknown query"}]}`)
	}
}

// newImportService はfakeGitHubに向けたサービス一式を組み立てます
func newImportService(t *testing.T, f *fakeGitHub, csvContent string) (*ImportService, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "issues.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvContent), 0o644))

	cfg := &config.Config{
		GitHubToken:   "test-token",
		Repo:          "octo/demo",
		APIBaseURL:    f.server.URL,
		GraphQLURL:    f.server.URL + "/graphql",
		ProjectOwner:  "octo",
		ProjectNumber: 7,
		CSVPath:       csvPath,
		ResultCSV:     filepath.Join(dir, "result.csv"),
		LabelColor:    "ededed",
		DefaultStatus: "Todo",
		StatusMapping: map[string]string{"doing": "In Progress"},
		LabelColors:   map[string]string{},
	}

	client := api.NewGitHubClient(cfg)
	csvProc := NewCSVProcessor(cfg)
	return NewImportService(cfg, client, csvProc), cfg
}

func TestRun_ImportsAllRows(t *testing.T) {
	f := newFakeGitHub(t)
	svc, cfg := newImportService(t, f, "Title,Body,Labels,Status\n"+
		"タスクA,説明A,\"bug, enhancement\",Todo\n"+
		"タスクB,説明B,,doing\n"+
		"タスクC,,,\n")

	result, err := svc.Run(false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	// 逐次実行なので作成順はCSVの行順
	assert.Equal(t, []string{"タスクA", "タスクB", "タスクC"}, f.issueTitles)
	assert.Equal(t, 3, f.addedItems)

	// bugは既存なのでenhancementだけ作成される
	assert.Equal(t, []string{"enhancement"}, f.createdLabels)

	// doingはマッピング経由でIn Progress、空ステータスはデフォルトのTodo
	assert.Equal(t, []string{"OPT_TODO", "OPT_PROG", "OPT_TODO"}, f.statusSets)

	// 結果CSVが書き出されている
	data, err := os.ReadFile(cfg.ResultCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), "タスクA")
}

func TestRun_ContinuesAfterRowFailure(t *testing.T) {
	f := newFakeGitHub(t)
	f.failTitle = "タスクB"

	svc, _ := newImportService(t, f, "Title,Body,Labels,Status\n"+
		"タスクA,,,Todo\n"+
		"タスクB,,,Todo\n"+
		"タスクC,,,Todo\n")

	result, err := svc.Run(false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	// 失敗行の後も処理が続く
	assert.Equal(t, []string{"タスクA", "タスクC"}, f.issueTitles)

	require.Len(t, result.Rows, 3)
	assert.Empty(t, result.Rows[0].Err)
	assert.Contains(t, result.Rows[1].Err, "イシュー作成エラー")
	assert.Empty(t, result.Rows[2].Err)
}

func TestRun_SkipsMalformedRow(t *testing.T) {
	f := newFakeGitHub(t)
	svc, _ := newImportService(t, f, "Title,Body,Labels,Status\n"+
		"タスクA,,,Todo\n"+
		"フィールド不足の行,xx\n"+
		"タスクC,,,Todo\n")

	result, err := svc.Run(false)
	require.NoError(t, err)

	// 壊れた行はスキップされ、残りの行はインポートされる
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, []string{"タスクA", "タスクC"}, f.issueTitles)

	// 結果の行番号は元CSVの行番号
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.Rows[0].Row)
	assert.Equal(t, 4, result.Rows[1].Row)
}

func TestRun_UnknownStatusSkipsStatusStep(t *testing.T) {
	f := newFakeGitHub(t)
	svc, _ := newImportService(t, f, "Title,Body,Labels,Status\n"+
		"タスクA,,,Nonexistent\n")

	result, err := svc.Run(false)
	require.NoError(t, err)

	// イシュー作成とプロジェクト追加は行われ、ステータス設定だけスキップ
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, f.addedItems)
	assert.Empty(t, f.statusSets)
}

func TestRun_DryRun(t *testing.T) {
	f := newFakeGitHub(t)
	svc, cfg := newImportService(t, f, "Title,Body,Labels,Status\n"+
		"タスクA,,,Todo\n"+
		"タスクB,,,doing\n")

	result, err := svc.Run(true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Succeeded)

	// 書き込み系の呼び出しは発生しない
	assert.Empty(t, f.issueTitles)
	assert.Empty(t, f.createdLabels)
	assert.Equal(t, 0, f.addedItems)

	// 結果CSVも書かれない
	_, err = os.Stat(cfg.ResultCSV)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	}))
	t.Cleanup(server.Close)

	f := &fakeGitHub{server: server}
	svc, _ := newImportService(t, f, "Title,Body,Labels,Status\nタスクA,,,Todo\n")

	_, err := svc.Run(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GitHub認証エラー")
}
