package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"csvtogithub/api"
	"csvtogithub/config"
	"csvtogithub/services"
	"csvtogithub/utils"
)

func main() {
	// コマンドラインフラグの定義
	csvPath := flag.String("input", "", "インポートするCSVファイルのパス（指定しない場合は環境変数から取得）")
	resultCSV := flag.String("result", "", "結果CSVの出力先（指定しない場合は環境変数から取得）")
	repo := flag.String("repo", "", "イシューを作成するリポジトリ owner/repo（指定しない場合は環境変数から取得）")
	dryRun := flag.Bool("dry-run", false, "書き込みを行わずCSVとプロジェクト設定を検証する")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	utils.LogInfo("CSV → GitHub イシューインポートツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// コマンドラインでパスが指定された場合、設定を上書き
	if *csvPath != "" {
		cfg.CSVPath = *csvPath
		utils.LogInfo("入力ファイルを指定: %s", cfg.CSVPath)
	}

	if *resultCSV != "" {
		cfg.ResultCSV = *resultCSV
		utils.LogInfo("結果ファイルを指定: %s", cfg.ResultCSV)
	}

	if *repo != "" {
		cfg.Repo = *repo
		utils.LogInfo("リポジトリを指定: %s", cfg.Repo)
	}

	// 必須項目の確認
	if err := cfg.Validate(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}

	// CSVファイルの存在確認
	if _, err := os.Stat(cfg.CSVPath); os.IsNotExist(err) {
		utils.LogError("CSVファイルが見つかりません: %s", cfg.CSVPath)
		os.Exit(1)
	}

	// 必要なサービスの初期化
	client := api.NewGitHubClient(cfg)
	csvProc := services.NewCSVProcessor(cfg)
	importService := services.NewImportService(cfg, client, csvProc)

	// インポートの実行
	result, err := importService.Run(*dryRun)
	if err != nil {
		utils.LogError("インポート処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 合計実行時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("処理が完了しました。合計実行時間: %s", elapsed)

	// 全行失敗した場合は異常終了とする
	if result.Total > 0 && result.Failed == result.Total {
		utils.LogError("すべての行のインポートに失敗しました")
		os.Exit(1)
	}
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
CSV → GitHub イシューインポートツール

使用方法:
  %s [オプション]

オプション:
  -input ファイル      インポートするCSV
  -result ファイル     結果CSVの出力先
  -repo owner/repo    イシューを作成するリポジトリ
  -dry-run            書き込みを行わず検証のみ実行する
  -help               このヘルプを表示する

環境変数:
  GITHUB_TOKEN        GitHub APIトークン (必須)
  REPO                イシューを作成するリポジトリ owner/repo (必須)
  PROJECT_OWNER       プロジェクトのオーナー (必須)
  PROJECT_NUMBER      プロジェクト番号 (必須)
  CSV_PATH            インポートするCSVファイルパス (必須)
  RESULT_CSV          結果CSVの出力先 (デフォルト: import_result.csv)
  MAPPING_FILE        ステータス/ラベルのYAMLマッピングファイル
  LABEL_COLOR         作成するラベルのカラーコード (デフォルト: ededed)
  DEFAULT_STATUS      Status列が空の場合の値 (デフォルト: Todo)

説明:
  このツールはCSVの各行についてGitHubイシューを作成し、
  ProjectV2ボードに追加してStatusフィールドを設定します。

  CSVには Title, Body, Labels, Status の列が必要です。
  Labelsはカンマ区切りで、存在しないラベルは自動作成されます。

  行単位のエラーは記録して処理を続行し、結果は結果CSVに
  書き出されます。
`, os.Args[0])
}
