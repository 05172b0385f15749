package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"csvtogithub/config"
	"csvtogithub/models"
)

// projectQuery はProjectV2とそのフィールド一覧を取得するGraphQLクエリです
// ルート (user / organization) だけが異なるため書式文字列にしています
const projectQuery = `
query($login:String!, $number:Int!) {
  %s(login:$login) {
    projectV2(number:$number) {
      id
      title
      fields(first:100) {
        nodes {
          ... on ProjectV2SingleSelectField {
            id
            name
            options { id name }
          }
          ... on ProjectV2FieldCommon {
            id
            name
          }
        }
      }
    }
  }
}
`

const addItemMutation = `
mutation($projectId:ID!, $contentId:ID!) {
  addProjectV2ItemById(input:{projectId:$projectId, contentId:$contentId}) {
    item { id }
  }
}
`

const setStatusMutation = `
mutation($projectId:ID!, $itemId:ID!, $fieldId:ID!, $optId:String!) {
  updateProjectV2ItemFieldValue(input:{
    projectId:$projectId,
    itemId:$itemId,
    fieldId:$fieldId,
    value:{ singleSelectOptionId:$optId }
  }) { clientMutationId }
}
`

// GraphQLError はGraphQLレスポンスのerrors配列を表します
// HTTPやネットワークの失敗とは区別して扱えるようにしています
type GraphQLError struct {
	Errors interface{}
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("GraphQLエラー: %v", e.Errors)
}

// GitHubClient はGitHub APIとのやり取りを処理します
type GitHubClient struct {
	config *config.Config
	client *http.Client
}

// NewGitHubClient は新しいGitHubクライアントを作成します
func NewGitHubClient(cfg *config.Config) *GitHubClient {
	return &GitHubClient{
		config: cfg,
		client: &http.Client{},
	}
}

// setHeaders はGitHub API共通のリクエストヘッダーを設定します
func (g *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.config.GitHubToken)
	req.Header.Set("Accept", "application/vnd.github+json")
}

// rest はREST APIへのリクエストを送信し、ステータスコードとボディを返します
func (g *GitHubClient) rest(method, path string, payload interface{}) (int, []byte, error) {
	url := g.config.APIBaseURL + path

	var reqBody io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("JSONエンコードエラー: %w", err)
		}
		reqBody = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	g.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("レスポンス読み取りエラー: %w", err)
	}

	return resp.StatusCode, body, nil
}

// graphql はGraphQL APIへクエリを送信し、dataオブジェクトを返します
func (g *GitHubClient) graphql(query string, variables map[string]interface{}) (map[string]interface{}, error) {
	if variables == nil {
		variables = map[string]interface{}{}
	}

	payload := map[string]interface{}{
		"query":     query,
		"variables": variables,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("POST", g.config.GraphQLURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GraphQL HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	if errs, ok := result["errors"]; ok {
		return nil, &GraphQLError{Errors: errs}
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("GraphQLレスポンスにdataがありません")
	}

	return data, nil
}

// CheckAuth はGitHub認証をチェックします
func (g *GitHubClient) CheckAuth() error {
	status, body, err := g.rest("GET", "/user", nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("認証失敗: %s", string(body))
	}

	return nil
}

// FindProject はオーナーとプロジェクト番号からProjectV2を検索します
// ユーザー所有として見つからなければ組織所有として再検索します
func (g *GitHubClient) FindProject(owner string, number int) (*models.Project, error) {
	variables := map[string]interface{}{
		"login":  owner,
		"number": number,
	}

	for _, root := range []string{"user", "organization"} {
		data, err := g.graphql(fmt.Sprintf(projectQuery, root), variables)
		if err != nil {
			// ユーザーとして解決できない場合 (GraphQLエラー) のみ組織として再試行する
			// ネットワークやHTTPレベルの失敗はそのまま返す
			var gqlErr *GraphQLError
			if root == "user" && errors.As(err, &gqlErr) {
				continue
			}
			return nil, err
		}

		rootObj, ok := data[root].(map[string]interface{})
		if !ok {
			continue
		}

		projObj, ok := rootObj["projectV2"].(map[string]interface{})
		if !ok {
			continue
		}

		project, err := parseProject(projObj)
		if err != nil {
			return nil, err
		}
		return project, nil
	}

	return nil, fmt.Errorf("プロジェクト番号 %d がオーナー '%s' の下に見つかりません", number, owner)
}

// parseProject はGraphQLレスポンスのprojectV2オブジェクトを解析します
func parseProject(projObj map[string]interface{}) (*models.Project, error) {
	id, ok := projObj["id"].(string)
	if !ok {
		return nil, fmt.Errorf("プロジェクトIDが見つかりません")
	}

	project := &models.Project{ID: id}
	if title, ok := projObj["title"].(string); ok {
		project.Title = title
	}

	fieldsObj, ok := projObj["fields"].(map[string]interface{})
	if !ok {
		return project, nil
	}

	nodes, ok := fieldsObj["nodes"].([]interface{})
	if !ok {
		return project, nil
	}

	for _, n := range nodes {
		node, ok := n.(map[string]interface{})
		if !ok {
			continue
		}

		fieldID, ok := node["id"].(string)
		if !ok {
			continue
		}

		name, ok := node["name"].(string)
		if !ok {
			continue
		}

		field := models.ProjectField{ID: fieldID, Name: name}

		// 単一選択フィールドの場合のみoptionsが含まれます
		if opts, ok := node["options"].([]interface{}); ok {
			field.Options = make(map[string]string)
			for _, o := range opts {
				opt, ok := o.(map[string]interface{})
				if !ok {
					continue
				}
				optID, ok := opt["id"].(string)
				if !ok {
					continue
				}
				optName, ok := opt["name"].(string)
				if !ok {
					continue
				}
				field.Options[strings.ToLower(strings.TrimSpace(optName))] = optID
			}
		}

		project.Fields = append(project.Fields, field)
	}

	return project, nil
}

// FindStatusField はプロジェクトから単一選択の'Status'フィールドを探します
func FindStatusField(project *models.Project) (*models.ProjectField, error) {
	for i := range project.Fields {
		f := &project.Fields[i]
		if strings.ToLower(f.Name) == "status" && f.Options != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("プロジェクトに単一選択の'Status'フィールドが見つかりません。Todo, In Progress, Done のオプション付きで先に作成してください")
}

// ListLabels はリポジトリの既存ラベル名を取得します
func (g *GitHubClient) ListLabels(owner, repo string) ([]string, error) {
	status, body, err := g.rest("GET", fmt.Sprintf("/repos/%s/%s/labels?per_page=100", owner, repo), nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("ラベル取得失敗: %s", string(body))
	}

	var labels []map[string]interface{}
	if err := json.Unmarshal(body, &labels); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if name, ok := l["name"].(string); ok {
			names = append(names, name)
		}
	}

	return names, nil
}

// CreateLabel はリポジトリにラベルを作成します
// すでに存在する場合 (HTTP 422 already_exists) は成功として扱います
func (g *GitHubClient) CreateLabel(owner, repo, name, color string) error {
	payload := map[string]string{
		"name":  name,
		"color": color,
	}

	status, body, err := g.rest("POST", fmt.Sprintf("/repos/%s/%s/labels", owner, repo), payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnprocessableEntity && strings.Contains(string(body), "already_exists") {
		return nil
	}

	if status != http.StatusCreated {
		return fmt.Errorf("ラベル作成失敗: %s", string(body))
	}

	return nil
}

// CreateIssue はGitHubイシューを作成します
func (g *GitHubClient) CreateIssue(owner, repo, title, body string, labels []string) (*models.CreatedIssue, error) {
	payload := map[string]interface{}{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}

	status, respBody, err := g.rest("POST", fmt.Sprintf("/repos/%s/%s/issues", owner, repo), payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusCreated {
		return nil, fmt.Errorf("イシュー作成失敗: %s", string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	number, ok := result["number"].(float64)
	if !ok {
		return nil, fmt.Errorf("イシュー番号が見つかりません")
	}

	nodeID, ok := result["node_id"].(string)
	if !ok {
		return nil, fmt.Errorf("イシューのnode_idが見つかりません")
	}

	return &models.CreatedIssue{Number: int(number), NodeID: nodeID}, nil
}

// AddIssueToProject はイシューをProjectV2に追加しアイテムIDを返します
func (g *GitHubClient) AddIssueToProject(projectID, contentID string) (string, error) {
	data, err := g.graphql(addItemMutation, map[string]interface{}{
		"projectId": projectID,
		"contentId": contentID,
	})
	if err != nil {
		return "", err
	}

	added, ok := data["addProjectV2ItemById"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("addProjectV2ItemByIdのレスポンスが不正です")
	}

	item, ok := added["item"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("プロジェクトアイテムが見つかりません")
	}

	itemID, ok := item["id"].(string)
	if !ok {
		return "", fmt.Errorf("プロジェクトアイテムIDが見つかりません")
	}

	return itemID, nil
}

// SetItemStatus はプロジェクトアイテムの単一選択フィールド値を更新します
func (g *GitHubClient) SetItemStatus(projectID, itemID, fieldID, optionID string) error {
	_, err := g.graphql(setStatusMutation, map[string]interface{}{
		"projectId": projectID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"optId":     optionID,
	})
	if err != nil {
		return fmt.Errorf("ステータス更新失敗: %w", err)
	}

	return nil
}
