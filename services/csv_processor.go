package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"csvtogithub/config"
	"csvtogithub/models"
	"csvtogithub/utils"
)

// CSVProcessor はCSVファイルの読み書きを担当します
type CSVProcessor struct {
	config *config.Config
}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor(cfg *config.Config) *CSVProcessor {
	return &CSVProcessor{
		config: cfg,
	}
}

// ReadIssueCSV はインポート対象のCSVを読み込みます
// フィールド数がヘッダーと合わない行は警告を出してスキップします
func (p *CSVProcessor) ReadIssueCSV() ([]models.CSVLine, error) {
	utils.LogInfo("CSVファイル '%s' を読み込みます", p.config.CSVPath)

	file, err := os.Open(p.config.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// 列数の違う行をエラーにせず、読み込んでからスキップ判定する
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSVデータが不足しています")
	}

	headers := records[0]
	result := make([]models.CSVLine, 0, len(records)-1)

	for i, record := range records[1:] {
		line := i + 2
		if len(record) != len(headers) {
			utils.LogWarn("行 %d: フィールド数が不一致（ヘッダー: %d, 行: %d）のためスキップします", line, len(headers), len(record))
			continue
		}

		rowData := make(models.CSVRecord)
		for j, value := range record {
			rowData[headers[j]] = value
		}
		result = append(result, models.CSVLine{Line: line, Record: rowData})
	}

	utils.LogInfo("CSVを読み込みました: %d 行", len(result))
	return result, nil
}

// ParseRows はCSVレコードをインポート可能な行データに変換します
// Titleが空の行は警告を出してスキップします
func (p *CSVProcessor) ParseRows(lines []models.CSVLine) []models.IssueRow {
	rows := make([]models.IssueRow, 0, len(lines))

	for _, l := range lines {
		record := l.Record

		title := strings.TrimSpace(record["Title"])
		if title == "" {
			utils.LogWarn("行 %d: Titleが空のためスキップします", l.Line)
			continue
		}

		status := strings.TrimSpace(record["Status"])
		if status == "" {
			status = p.config.DefaultStatus
		}

		row := models.IssueRow{
			Index:  l.Line,
			Title:  title,
			Body:   strings.TrimSpace(record["Body"]),
			Status: status,
		}

		// ラベルはカンマ区切り、空要素は捨てる
		if labelsCSV := strings.TrimSpace(record["Labels"]); labelsCSV != "" {
			for _, l := range strings.Split(labelsCSV, ",") {
				if l = strings.TrimSpace(l); l != "" {
					row.Labels = append(row.Labels, l)
				}
			}
		}

		rows = append(rows, row)
	}

	return rows
}

// WriteResultCSV はインポート結果をCSVファイルに書き出します
func (p *CSVProcessor) WriteResultCSV(result *models.ImportResult) error {
	utils.LogInfo("結果CSVファイル '%s' を作成します", p.config.ResultCSV)

	file, err := os.Create(p.config.ResultCSV)
	if err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}
	defer file.Close()

	headers := []string{"Row", "Title", "Issue Number", "Item ID", "Error"}

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("ヘッダー書き込みエラー: %w", err)
	}

	for _, r := range result.Rows {
		issueNumber := ""
		if r.IssueNumber > 0 {
			issueNumber = strconv.Itoa(r.IssueNumber)
		}

		row := []string{
			strconv.Itoa(r.Row),
			r.Title,
			issueNumber,
			r.ItemID,
			r.Err,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("行書き込みエラー: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV書き込み完了エラー: %w", err)
	}

	utils.LogInfo("結果CSVを書き込みました: %d 行", len(result.Rows))
	return nil
}
