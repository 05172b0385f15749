package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// GitHub API設定
	GitHubToken string
	Repo        string // "owner/repo" 形式
	APIBaseURL  string
	GraphQLURL  string

	// プロジェクト設定
	ProjectOwner  string
	ProjectNumber int

	// ファイルパス
	CSVPath     string
	ResultCSV   string
	MappingFile string

	// インポート動作
	LabelColor    string
	DefaultStatus string

	// CSVのステータス値 (小文字) → プロジェクトのステータスオプション名
	StatusMapping map[string]string
	// ラベル名 (小文字) → 作成時のカラーコード
	LabelColors map[string]string
}

// DefaultStatusMapping はよくあるステータス表記をプロジェクトの標準オプションに寄せます
var DefaultStatusMapping = map[string]string{
	"backlog":  "Todo",
	"doing":    "In Progress",
	"complete": "Done",
}

// mappingFile はYAMLマッピングファイルの構造です
type mappingFile struct {
	Status map[string]string `yaml:"status"`
	Labels map[string]string `yaml:"labels"`
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	config := &Config{
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		Repo:          os.Getenv("REPO"),
		APIBaseURL:    strings.TrimRight(getEnvWithDefault("GITHUB_API_URL", "https://api.github.com"), "/"),
		GraphQLURL:    getEnvWithDefault("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql"),
		ProjectOwner:  os.Getenv("PROJECT_OWNER"),
		ProjectNumber: getEnvAsIntWithDefault("PROJECT_NUMBER", 0),
		CSVPath:       os.Getenv("CSV_PATH"),
		ResultCSV:     getEnvWithDefault("RESULT_CSV", "import_result.csv"),
		MappingFile:   os.Getenv("MAPPING_FILE"),
		LabelColor:    getEnvWithDefault("LABEL_COLOR", "ededed"),
		DefaultStatus: getEnvWithDefault("DEFAULT_STATUS", "Todo"),
		StatusMapping: make(map[string]string),
		LabelColors:   make(map[string]string),
	}

	for k, v := range DefaultStatusMapping {
		config.StatusMapping[k] = v
	}

	// マッピングファイルが指定されていれば上書きする
	if config.MappingFile != "" {
		if err := config.applyMappingFile(config.MappingFile); err != nil {
			return nil, fmt.Errorf("マッピングファイル読み込みエラー: %w", err)
		}
	}

	return config, nil
}

// Validate は必須の設定値がそろっているかを確認します
func (c *Config) Validate() error {
	var missing []string

	if c.GitHubToken == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.Repo == "" {
		missing = append(missing, "REPO")
	}
	if c.ProjectOwner == "" {
		missing = append(missing, "PROJECT_OWNER")
	}
	if c.ProjectNumber <= 0 {
		missing = append(missing, "PROJECT_NUMBER")
	}
	if c.CSVPath == "" {
		missing = append(missing, "CSV_PATH")
	}

	if len(missing) > 0 {
		return fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}

	if !strings.Contains(c.Repo, "/") {
		return fmt.Errorf("REPO は owner/repo 形式で指定してください: %s", c.Repo)
	}

	return nil
}

// SplitRepo は "owner/repo" をオーナー名とリポジトリ名に分割します
func (c *Config) SplitRepo() (string, string, error) {
	parts := strings.SplitN(c.Repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("REPO は owner/repo 形式で指定してください: %s", c.Repo)
	}
	return parts[0], parts[1], nil
}

// applyMappingFile はYAMLファイルのステータス／ラベルマッピングを設定に反映します
func (c *Config) applyMappingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルオープンエラー: %w", err)
	}

	var mf mappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("YAML解析エラー: %w", err)
	}

	for k, v := range mf.Status {
		c.StatusMapping[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range mf.Labels {
		c.LabelColors[strings.ToLower(strings.TrimSpace(k))] = v
	}

	return nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を整数として取得
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
