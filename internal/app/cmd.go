package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理APIサーバーを起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker はセッション掃除と期限レポートの定期ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩いて終了する。
	// distrolessイメージにはcurlが無いため、DockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
	// CommandBootstrapAdmin は管理者の認証情報を作成して終了する。
	CommandBootstrapAdmin Command = "bootstrap-admin"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

// commands はサブコマンドと説明の一覧。Usageの表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the admin API server (default)"},
	{CommandWorker, "run session cleanup and expiry report jobs"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandBootstrapAdmin, "create the SUPER_ADMIN_EMAIL credential from SUPER_ADMIN_PASSWORD"},
	{CommandHealthcheck, "probe /health of a running server"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空、または未知のコマンドの場合はCommandServeを返す。
// 2つ目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	return CommandServe
}

// Usage はサブコマンドの一覧をwに書き込む。
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: locauto [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.cmd, c.desc)
	}
}
