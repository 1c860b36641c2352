// Command locauto はユーザー管理APIサーバー、ワーカー、マイグレーションを起動する。
package main

import (
	"fmt"
	"os"

	// distrolessイメージにはタイムゾーンデータベースが無いため埋め込む
	_ "time/tzdata"

	"github.com/locauto/locauto/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
