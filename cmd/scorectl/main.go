// スコアボードの運用CLI。
// マイグレーションの管理、開発用トークンの発行、稼働中のサーバーへの
// スコア登録と参照を行う。
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp はCLIアプリケーションを構築する。
func newApp() *cli.App {
	return &cli.App{
		Name:  "scorectl",
		Usage: "scoreboard operations tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"SCOREBOARD_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			newMigrateCommand(),
			newTokenCommand(),
			newSubmitCommand(),
			newTopCommand(),
			newRankCommand(),
		},
	}
}
