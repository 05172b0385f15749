package services

import (
	"fmt"
	"strings"
	"time"

	"csvtogithub/api"
	"csvtogithub/config"
	"csvtogithub/models"
	"csvtogithub/utils"
)

// ImportService はCSVからGitHubイシュー／プロジェクトへのインポートを処理します
type ImportService struct {
	config  *config.Config
	client  *api.GitHubClient
	csvProc *CSVProcessor
}

// NewImportService は新しいインポートサービスを作成します
func NewImportService(cfg *config.Config, client *api.GitHubClient, csvProc *CSVProcessor) *ImportService {
	return &ImportService{
		config:  cfg,
		client:  client,
		csvProc: csvProc,
	}
}

// Run はインポート処理全体を実行します
// 行単位のエラーは記録して処理を続行します
func (s *ImportService) Run(dryRun bool) (*models.ImportResult, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "インポート処理")

	// GitHub認証チェック
	if err := s.client.CheckAuth(); err != nil {
		return nil, fmt.Errorf("GitHub認証エラー: %w", err)
	}
	utils.LogInfo("GitHub認証成功")

	owner, repo, err := s.config.SplitRepo()
	if err != nil {
		return nil, err
	}

	// プロジェクトとStatusフィールドの検索
	project, err := s.client.FindProject(s.config.ProjectOwner, s.config.ProjectNumber)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト検索エラー: %w", err)
	}

	statusField, err := api.FindStatusField(project)
	if err != nil {
		return nil, err
	}

	utils.LogInfo("プロジェクトが見つかりました: %s (id=%s)", project.Title, project.ID)
	utils.LogInfo("Statusオプション: %s", strings.Join(statusOptionNames(statusField), ", "))

	// CSVの読み込みと解析
	lines, err := s.csvProc.ReadIssueCSV()
	if err != nil {
		return nil, err
	}
	rows := s.csvProc.ParseRows(lines)

	result := &models.ImportResult{Total: len(rows)}

	if dryRun {
		s.validateRows(rows, statusField)
		utils.LogInfo("ドライラン完了: %d 行を検証しました (書き込みなし)", len(rows))
		return result, nil
	}

	// 既存ラベルのキャッシュ
	existing, err := s.existingLabels(owner, repo)
	if err != nil {
		utils.LogWarn("既存ラベルの取得に失敗しました: %v", err)
		existing = make(map[string]bool)
	}

	// 各行を順番に処理（作成順をCSVの行順に合わせるため逐次実行）
	for _, row := range rows {
		rowResult := models.RowResult{Row: row.Index, Title: row.Title}

		if err := s.processRow(owner, repo, project, statusField, row, existing, &rowResult); err != nil {
			utils.LogError("行 %d の処理に失敗: %v", row.Index, err)
			rowResult.Err = err.Error()
			result.Failed++
		} else {
			utils.LogInfo("行 %d の処理が完了: イシュー #%d", row.Index, rowResult.IssueNumber)
			result.Succeeded++
		}

		result.Rows = append(result.Rows, rowResult)
	}

	// 結果をCSVに書き込む
	if err := s.csvProc.WriteResultCSV(result); err != nil {
		utils.LogError("結果CSV書き込みエラー: %v", err)
	}

	utils.LogInfo("インポートが完了しました: 成功=%d, 失敗=%d", result.Succeeded, result.Failed)
	return result, nil
}

// processRow は1行を処理しイシュー作成→プロジェクト追加→ステータス設定を行います
func (s *ImportService) processRow(owner, repo string, project *models.Project, statusField *models.ProjectField, row models.IssueRow, existing map[string]bool, rowResult *models.RowResult) error {
	// ラベルが足りなければ作成する
	// 失敗してもイシュー作成は続行する（ラベルなしで作られるだけ）
	if err := s.ensureLabels(owner, repo, row.Labels, existing); err != nil {
		utils.LogWarn("行 %d: ラベル作成失敗: %v", row.Index, err)
	}

	// イシュー作成
	issue, err := s.client.CreateIssue(owner, repo, row.Title, row.Body, row.Labels)
	if err != nil {
		return fmt.Errorf("イシュー作成エラー: %w", err)
	}
	rowResult.IssueNumber = issue.Number
	utils.LogInfo("イシューを作成しました: #%d", issue.Number)

	// プロジェクトへ追加
	itemID, err := s.client.AddIssueToProject(project.ID, issue.NodeID)
	if err != nil {
		return fmt.Errorf("プロジェクト追加エラー: %w", err)
	}
	rowResult.ItemID = itemID

	// ステータス設定
	// オプションが解決できない・更新に失敗した場合は警告のみで行は成功扱い
	optionID, optionName, ok := s.resolveStatus(statusField, row.Status)
	if !ok {
		utils.LogWarn("行 %d: ステータス '%s' がプロジェクトに見つかりません。利用可能: %s",
			row.Index, row.Status, strings.Join(statusOptionNames(statusField), ", "))
		return nil
	}

	if err := s.client.SetItemStatus(project.ID, itemID, statusField.ID, optionID); err != nil {
		utils.LogWarn("行 %d: ステータス設定失敗 (%s): %v", row.Index, optionName, err)
	}

	return nil
}

// ensureLabels は存在しないラベルをリポジトリに作成します
func (s *ImportService) ensureLabels(owner, repo string, labels []string, existing map[string]bool) error {
	for _, label := range labels {
		key := strings.ToLower(strings.TrimSpace(label))
		if existing[key] {
			continue
		}

		color := s.config.LabelColor
		if c, ok := s.config.LabelColors[key]; ok {
			color = c
		}

		if err := s.client.CreateLabel(owner, repo, strings.TrimSpace(label), color); err != nil {
			return err
		}

		existing[key] = true
		utils.LogInfo("ラベルを作成しました: %s", label)
	}

	return nil
}

// existingLabels はリポジトリの既存ラベルを小文字キーのセットとして取得します
func (s *ImportService) existingLabels(owner, repo string) (map[string]bool, error) {
	names, err := s.client.ListLabels(owner, repo)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[strings.ToLower(name)] = true
	}

	return existing, nil
}

// resolveStatus は行のステータス値をプロジェクトのオプションIDに解決します
// まずマッピングを適用し、次にオプション名で照合します（大文字小文字は無視）
func (s *ImportService) resolveStatus(statusField *models.ProjectField, status string) (string, string, bool) {
	name := strings.TrimSpace(status)
	if name == "" {
		name = s.config.DefaultStatus
	}

	key := strings.ToLower(name)
	if mapped, ok := s.config.StatusMapping[key]; ok {
		name = mapped
		key = strings.ToLower(strings.TrimSpace(mapped))
	}

	optionID, ok := statusField.Options[key]
	return optionID, name, ok
}

// validateRows はドライラン時に各行のステータスが解決できるかを確認します
func (s *ImportService) validateRows(rows []models.IssueRow, statusField *models.ProjectField) {
	for _, row := range rows {
		if _, _, ok := s.resolveStatus(statusField, row.Status); !ok {
			utils.LogWarn("行 %d: ステータス '%s' がプロジェクトに見つかりません", row.Index, row.Status)
		} else {
			utils.LogInfo("行 %d: OK (%s)", row.Index, row.Title)
		}
	}
}

// statusOptionNames はStatusフィールドのオプション名一覧を返します
func statusOptionNames(statusField *models.ProjectField) []string {
	names := make([]string, 0, len(statusField.Options))
	for name := range statusField.Options {
		names = append(names, name)
	}
	return names
}
