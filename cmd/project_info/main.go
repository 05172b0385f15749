package main

import (
	"flag"
	"fmt"
	"os"

	"csvtogithub/api"
	"csvtogithub/config"
	"csvtogithub/utils"
)

func main() {
	// コマンドラインフラグの定義
	owner := flag.String("owner", "", "プロジェクトのオーナー（指定しない場合は環境変数から取得）")
	number := flag.Int("number", 0, "プロジェクト番号（指定しない場合は環境変数から取得）")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("GitHub プロジェクト情報ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// コマンドラインで指定された場合、設定を上書き
	if *owner != "" {
		cfg.ProjectOwner = *owner
	}
	if *number > 0 {
		cfg.ProjectNumber = *number
	}

	if cfg.GitHubToken == "" || cfg.ProjectOwner == "" || cfg.ProjectNumber <= 0 {
		utils.LogError("GITHUB_TOKEN, PROJECT_OWNER, PROJECT_NUMBER を設定してください")
		os.Exit(1)
	}

	// GitHubクライアントの初期化
	client := api.NewGitHubClient(cfg)

	// プロジェクトの検索
	utils.LogInfo("プロジェクトを検索しています: owner=%s, number=%d", cfg.ProjectOwner, cfg.ProjectNumber)
	project, err := client.FindProject(cfg.ProjectOwner, cfg.ProjectNumber)
	if err != nil {
		utils.LogError("プロジェクト検索エラー: %v", err)
		os.Exit(1)
	}

	utils.LogInfo("プロジェクトが見つかりました: %s (id=%s)", project.Title, project.ID)

	// フィールド一覧の表示
	for _, f := range project.Fields {
		if f.Options == nil {
			utils.LogInfo("フィールド: %s (id=%s)", f.Name, f.ID)
			continue
		}

		utils.LogInfo("単一選択フィールド: %s (id=%s)", f.Name, f.ID)
		for name, id := range f.Options {
			utils.LogInfo("  オプション: %s (id=%s)", name, id)
		}
	}

	// Statusフィールドの確認
	if _, err := api.FindStatusField(project); err != nil {
		utils.LogWarn("%v", err)
		os.Exit(1)
	}

	utils.LogInfo("Statusフィールドが確認できました。インポートを実行できます。")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
GitHub プロジェクト情報ツール

使用方法:
  %s [オプション]

オプション:
  -owner オーナー      プロジェクトのオーナー (ユーザーまたは組織)
  -number 番号         プロジェクト番号
  -help               このヘルプを表示する

環境変数:
  GITHUB_TOKEN        GitHub APIトークン (必須)
  PROJECT_OWNER       プロジェクトのオーナー (必須)
  PROJECT_NUMBER      プロジェクト番号 (必須)
  GITHUB_GRAPHQL_URL  GraphQL API URL (デフォルト: https://api.github.com/graphql)

説明:
  このツールはProjectV2のIDとフィールド構成を表示します。
  インポート前に'Status'単一選択フィールドとそのオプションが
  存在するかを確認するために使用します。
`, os.Args[0])
}
