package models

// CSVRecord はCSVの1行を表します (ヘッダー名→値のマップ)
type CSVRecord map[string]string

// CSVLine は元CSVの行番号付きのレコードです
type CSVLine struct {
	Line   int // ヘッダーを1行目として2始まり
	Record CSVRecord
}

// IssueRow はインポート対象のCSV行を解析した結果を表します
type IssueRow struct {
	Index  int // 元CSVの行番号 (ヘッダーを1行目として2始まり)
	Title  string
	Body   string
	Labels []string
	Status string
}

// Project はGitHub ProjectV2を表します
type Project struct {
	ID     string
	Title  string
	Fields []ProjectField
}

// ProjectField はProjectV2のフィールドを表します
// 単一選択フィールドの場合のみOptionsが設定されます
type ProjectField struct {
	ID      string
	Name    string
	Options map[string]string // 正規化したオプション名 → オプションID
}

// CreatedIssue は作成されたGitHubイシューを表します
type CreatedIssue struct {
	Number int
	NodeID string
}

// RowResult は1行分のインポート結果を表します
type RowResult struct {
	Row         int
	Title       string
	IssueNumber int
	ItemID      string
	Err         string
}

// ImportResult はインポート全体の結果を表します
type ImportResult struct {
	Total     int
	Succeeded int
	Failed    int
	Rows      []RowResult
}
