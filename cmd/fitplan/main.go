// fitplan はパーソナライズされた栄養・運動ターゲットを計算するAPIサーバー。
//
// サブコマンド:
//
//	serve       APIサーバーを起動する（デフォルト）
//	worker      週次再計算ワーカーを起動する
//	migrate     データベースマイグレーションを実行する
//	healthcheck ヘルスチェックを実行する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/fitplan/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
